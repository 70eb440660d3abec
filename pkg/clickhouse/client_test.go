package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptions(t *testing.T) {
	cfg := Config{
		Host:             "ch.local",
		Port:             8123,
		Database:         "pricecast",
		User:             "svc",
		Password:         "secret",
		UseHTTP:          true,
		AsyncInsert:      true,
		WaitForAsync:     true,
		MaxExecutionTime: 90 * time.Second,
	}.withDefaults()
	opts := buildOptions(cfg)

	assert.Equal(t, []string{"ch.local:8123"}, opts.Addr)
	assert.Equal(t, "pricecast", opts.Auth.Database)
	assert.Equal(t, "svc", opts.Auth.Username)
	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "localhost"}.withDefaults()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.User)

	opts := buildOptions(cfg)
	assert.Equal(t, clickhouse.Native, opts.Protocol)
	assert.Empty(t, opts.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestInsertBatchEmpty(t *testing.T) {
	var c Client
	assert.NoError(t, c.InsertBatch(context.Background(), "INSERT INTO t (a)", 0, nil))
}
