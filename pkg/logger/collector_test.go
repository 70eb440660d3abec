package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, value.(LogBatch))
	return nil
}

func (p *fakePublisher) snapshot() []LogBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogBatch(nil), p.batches...)
}

func TestCollectorAggregatesErrors(t *testing.T) {
	pub := &fakePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "pricecast.logs", Source: "pricecast", Publisher: pub})
	defer l.RemoveCollector()

	child := l.With(String("component", "search"))
	for i := 0; i < 3; i++ {
		child.Error("fit failed", String("series", "EIA366_PBRENT366"), Error(errors.New("boom")))
	}
	l.Error("other failure")
	l.Warn("not collected")

	l.collector.Flush()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "pricecast.logs", pub.topic)
	assert.Equal(t, "pricecast", batches[0].Source)
	require.Len(t, batches[0].Entries, 2)

	counts := map[string]int{}
	for _, e := range batches[0].Entries {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 3, counts["fit failed"])
	assert.Equal(t, 1, counts["other failure"])
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Entries, 2)
}

func TestErrorFieldNil(t *testing.T) {
	k, v := Error(nil).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Nil(t, v)
}
