//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceCast/pkg/config"
	"PriceCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideSeriesMirror,
	ProvideHTTPClient,
	ProvideIpeadataSource,
	ProvideSeriesSource,
	ProvideCache,
	ProvideReportPublisher,
	ProvideForecastUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		ProvideRefreshLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeForecaster wires the pieces needed by one-off CLI runs.
func InitializeForecaster(cfg *config.Config) (*Forecaster, func(), error) {
	wire.Build(
		infraSet,
		ProvideForecaster,
	)
	return nil, nil, nil
}
