package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
}

// New creates an App. consumer may be nil when Kafka commands are disabled.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, httpServer: httpServer, consumer: consumer}
}

// Run starts the application and blocks until ctx is done or a signal
// arrives. Infrastructure clients are closed by the caller afterwards.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	a.log.Info("pricecast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("series", a.cfg.Forecast.SeriesCode),
		applogger.Int("port", a.cfg.HTTP.Port),
		applogger.Bool("kafka_commands", a.consumer != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	timeout := a.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
