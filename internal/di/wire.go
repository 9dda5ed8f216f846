//go:build wireinject
// +build wireinject

package di

import (
	"PriceShaper/pkg/config"
	"PriceShaper/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideEngine,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStore,
		ProvideBarPublisher,
		ProvideAdjustmentSource,
		ProvideMarkCache,
		ProvideFinnhubStream,

		// Use cases
		ProvideLiveOverlay,
		ProvideCandlesUseCase,
		ProvideTradeCollector,
		ProvideAdjustmentEventsHandler,
		ProvideEventsQueue,

		// Transport
		ProvideRateLimiter,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
