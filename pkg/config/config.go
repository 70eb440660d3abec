package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         LogConfig       `yaml:"log"`
	HTTP        HTTPConfig      `yaml:"http"`
	ClickHouse  ClickHouse      `yaml:"clickhouse"`
	Redis       Redis           `yaml:"redis"`
	Kafka       Kafka           `yaml:"kafka"`
	Ipeadata    Ipeadata        `yaml:"ipeadata"`
	Forecast    Forecast        `yaml:"forecast"`
	Cache       Cache           `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

type LogConfig struct {
	Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output    string `yaml:"output" default:"stdout" validate:"required"`
	Collector struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"pricecast.logs"`
		FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100" validate:"gte=1"`
	} `yaml:"collector"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
	Port             int           `yaml:"port" default:"9000" validate:"gte=1,lte=65535"`
	Database         string        `yaml:"database" default:"pricecast"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	// MaxStale is how old the mirror may get before Ipeadata is asked again.
	MaxStale time.Duration `yaml:"max_stale" default:"24h"`
}

type Redis struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"6379" validate:"gte=1,lte=65535"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
	Prefix       string        `yaml:"prefix" default:"pricecast"`
}

type Kafka struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]" validate:"required_if=Enabled true"`
	ReportTopic  string   `yaml:"report_topic" default:"pricecast.reports"`
	RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"1"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled      bool          `yaml:"enabled"`
		CommandTopic string        `yaml:"command_topic" default:"pricecast.commands"`
		GroupID      string        `yaml:"group_id" default:"pricecast"`
		StartOffset  string        `yaml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
		Workers      int           `yaml:"workers" default:"1" validate:"gte=1"`
		BufferSize   int           `yaml:"buffer_size" default:"16"`
		RetryMax     int           `yaml:"retry_max" default:"2" validate:"gte=0"`
		BackoffMin   time.Duration `yaml:"backoff_min" default:"500ms"`
		BackoffMax   time.Duration `yaml:"backoff_max" default:"10s"`
		DLQTopic     string        `yaml:"dlq_topic" default:"pricecast.commands.dlq"`
	} `yaml:"consumer"`
}

type Ipeadata struct {
	URL        string        `yaml:"url" default:"http://www.ipeadata.gov.br/api/odata4" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout" default:"60s"`
	MaxRetries int           `yaml:"max_retries" default:"4" validate:"gte=0"`
	MaxElapsed time.Duration `yaml:"max_elapsed" default:"2m"`
	UserAgent  string        `yaml:"user_agent" default:"pricecast/1.0"`
}

type Forecast struct {
	SeriesCode    string        `yaml:"series_code" default:"EIA366_PBRENT366" validate:"required"`
	Target        string        `yaml:"target" default:"Price" validate:"required"`
	LookbackYears int           `yaml:"lookback_years" default:"25" validate:"gte=1"`
	Lags          int           `yaml:"lags" default:"7" validate:"gte=1"`
	Window        int           `yaml:"window" default:"7" validate:"gte=1"`
	TrainFraction float64       `yaml:"train_fraction" default:"0.9" validate:"gt=0,lt=1"`
	CVFolds       int           `yaml:"cv_folds" default:"3" validate:"gte=2"`
	Factor        int           `yaml:"halving_factor" default:"3" validate:"gte=2"`
	Seed          int64         `yaml:"seed" default:"42"`
	Workers       int           `yaml:"workers" validate:"gte=0"`
	RunTimeout    time.Duration `yaml:"run_timeout" default:"30m"`
	Grid          Grid          `yaml:"grid"`
}

// Grid lists the random forest hyperparameter axes to search.
type Grid struct {
	NEstimators     []int    `yaml:"n_estimators" default:"[100,200]" validate:"min=1,dive,gte=1"`
	MaxDepth        []int    `yaml:"max_depth" default:"[10,20]" validate:"min=1,dive,gte=0"`
	MinSamplesSplit []int    `yaml:"min_samples_split" default:"[2,5]" validate:"min=1,dive,gte=2"`
	MaxFeatures     []string `yaml:"max_features" default:"[\"auto\",\"sqrt\"]" validate:"min=1,dive,required"`
	Bootstrap       []bool   `yaml:"bootstrap" default:"[true,false]" validate:"min=1"`
}

type Cache struct {
	Backend      string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
	ReportTTL    time.Duration `yaml:"report_ttl" default:"24h"`
	MemoryMax    int           `yaml:"memory_max" default:"256" validate:"gte=1"`
	MemoryTTL    time.Duration `yaml:"memory_ttl" default:"5m"`
	CleanupEvery time.Duration `yaml:"cleanup_every" default:"1m"`
}

type RateLimitConfig struct {
	RefreshPerMinute float64 `yaml:"refresh_per_minute" default:"2" validate:"gt=0"`
	Burst            int     `yaml:"burst" default:"3" validate:"gte=1"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates the result. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	return finish(c)
}

// LoadWithEnv is Load with environment overrides applied before defaults
// and validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return finish(c)
}

func read(path string) (*Config, error) {
	var c Config
	if path == "" {
		return &c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func finish(c *Config) (*Config, error) {
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SERIES_CODE"); v != "" {
		c.Forecast.SeriesCode = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_ADDR port: %w", err)
		}
		c.Redis.Host, c.Redis.Port = host, p
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	return nil
}

// Validate checks struct rules plus constraints that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer.enabled requires kafka.enabled")
	}
	if c.Log.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log.collector.enabled requires kafka.enabled")
	}
	return nil
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}
