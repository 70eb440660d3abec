package di

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/search"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	pc := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  pc.MaxAttempts,
		BatchSize:    pc.BatchSize,
		BatchBytes:   pc.BatchBytes,
		BatchTimeout: pc.Linger,
		WriteTimeout: pc.WriteTimeout,
		ReadTimeout:  pc.ReadTimeout,
		Async:        pc.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the app logger. With the collector enabled, error
// logs are aggregated and shipped through the Kafka producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.FlushInterval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Source:         "pricecast",
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when the
// mirror is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(context.Background(), pkgch.Config{
		Host:             ch.Host,
		Port:             ch.Port,
		Database:         ch.Database,
		User:             ch.User,
		Password:         ch.Password,
		UseHTTP:          ch.UseHTTP,
		DialTimeout:      ch.DialTimeout,
		ReadTimeout:      ch.ReadTimeout,
		MaxExecutionTime: ch.MaxExecutionTime,
		AsyncInsert:      ch.AsyncInsert,
		WaitForAsync:     ch.WaitForAsync,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSeriesMirror returns the ClickHouse mirror with its schema in place,
// falling back to an in-process mirror without ClickHouse.
func ProvideSeriesMirror(ch *pkgch.Client, log *applogger.Logger) (repository.SeriesStore, error) {
	if ch == nil {
		return internalrepo.NewMemorySeriesStore(), nil
	}
	store := internalrepo.NewCHSeriesStore(ch)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideHTTPClient creates the outbound HTTP client for Ipeadata.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Ipeadata.Timeout),
		xhttp.WithUserAgent(cfg.Ipeadata.UserAgent),
	)
}

// ProvideIpeadataSource creates the upstream series source.
func ProvideIpeadataSource(cfg *config.Config, client *xhttp.Client, log *applogger.Logger, m repository.Metrics) *internalrepo.IpeadataSource {
	return internalrepo.NewIpeadataSource(client,
		internalrepo.WithIpeadataURL(cfg.Ipeadata.URL),
		internalrepo.WithTargetName(cfg.Forecast.Target),
		internalrepo.WithRetry(uint64(cfg.Ipeadata.MaxRetries), cfg.Ipeadata.MaxElapsed),
		internalrepo.WithIpeadataLogger(log),
		internalrepo.WithIpeadataMetrics(m),
	)
}

// ProvideSeriesSource puts the mirror in front of Ipeadata.
func ProvideSeriesSource(cfg *config.Config, upstream *internalrepo.IpeadataSource, mirror repository.SeriesStore, log *applogger.Logger) *internalrepo.CachedSource {
	return internalrepo.NewCachedSource(upstream, mirror, cfg.ClickHouse.MaxStale, log)
}

// ProvideCache creates the report cache selected by cache.backend.
func ProvideCache(cfg *config.Config) (cache.Store, func(), error) {
	cc := cfg.Cache
	if cc.Backend == "memory" {
		m := cache.NewMemoryStore(
			cache.WithMaxEntries(cc.MemoryMax),
			cache.WithDefaultTTL(cc.ReportTTL),
			cache.WithJanitor(cc.CleanupEvery),
		)
		return m, func() { _ = m.Close() }, nil
	}

	rs, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
		Prefix:       cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	if cc.Backend == "redis" {
		return rs, func() { _ = rs.Close() }, nil
	}
	ls := cache.NewLayeredStore(rs, cc.MemoryMax, cc.MemoryTTL)
	return ls, func() { _ = ls.Close() }, nil
}

// ProvideReportPublisher publishes finished reports to Kafka when enabled.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return internalrepo.NopReportPublisher{}
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic)
}

// forecastConfig maps the forecast section onto use case settings.
func forecastConfig(cfg *config.Config) usecase.ForecastConfig {
	f := cfg.Forecast
	return usecase.ForecastConfig{
		SeriesCode: f.SeriesCode,
		Target:     f.Target,
		Defaults: models.ForecastParams{
			LookbackYears: f.LookbackYears,
			Lags:          f.Lags,
			Window:        f.Window,
			TrainFraction: f.TrainFraction,
			CVFolds:       f.CVFolds,
			Factor:        f.Factor,
			Seed:          f.Seed,
		},
		Grid: search.Grid{
			NEstimators:     f.Grid.NEstimators,
			MaxDepth:        f.Grid.MaxDepth,
			MinSamplesSplit: f.Grid.MinSamplesSplit,
			MaxFeatures:     f.Grid.MaxFeatures,
			Bootstrap:       f.Grid.Bootstrap,
		},
		Workers:    f.Workers,
		CacheTTL:   cfg.Cache.ReportTTL,
		RunTimeout: f.RunTimeout,
	}
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(
	cfg *config.Config,
	source *internalrepo.CachedSource,
	c cache.Store,
	pub repository.ReportPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(forecastConfig(cfg), source, c, pub, m, log)
}

// ProvideRefreshLimiter limits POST /api/forecast/refresh per client.
func ProvideRefreshLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.RefreshPerMinute/60, cfg.RateLimit.Burst)
}

// ProvideForecastHandler creates the forecast HTTP handler.
func ProvideForecastHandler(log *applogger.Logger, uc *usecase.ForecastUseCase, limiter *ratelimit.Limiter) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(log, uc, limiter)
}

// ProvideHTTPServer creates the HTTP server with health checks for the
// mirror and the report cache.
func ProvideHTTPServer(cfg *config.Config, h *api.ForecastEchoHandler, log *applogger.Logger, mirror repository.SeriesStore, c cache.Store) *xhttp.Server {
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.HTTP.Host),
		xhttp.WithPort(cfg.HTTP.Port),
		xhttp.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.HTTP.SlowThreshold),
		xhttp.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
		xhttp.WithLogger(log),
		xhttp.WithHealthCheck("series_mirror", mirror.Health),
		xhttp.WithHealthCheck("report_cache", c.Ping),
	)
}

// ProvideKafkaConsumer consumes the command topic when enabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	uc *usecase.ForecastUseCase,
	source *internalrepo.CachedSource,
	log *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	cc := cfg.Kafka.Consumer
	if !cfg.Kafka.Enabled || !cc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerStartOffset(cc.StartOffset),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.NewLoggingHook(log)))
	consumer.RegisterHandler(usecase.NewCommandHandler(cc.CommandTopic, uc, source, log))
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, log *applogger.Logger, srv *xhttp.Server, consumer *pkgkafka.Consumer) *server.App {
	return server.New(cfg, log, srv, consumer)
}

// Forecaster bundles what the CLI needs for one-off runs.
type Forecaster struct {
	UseCase *usecase.ForecastUseCase
	Source  *internalrepo.CachedSource
	Logger  *applogger.Logger
}

// ProvideForecaster assembles a Forecaster.
func ProvideForecaster(uc *usecase.ForecastUseCase, source *internalrepo.CachedSource, log *applogger.Logger) *Forecaster {
	return &Forecaster{UseCase: uc, Source: source, Logger: log}
}
