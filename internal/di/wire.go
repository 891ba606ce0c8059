//go:build wireinject
// +build wireinject

package di

import (
	"TradeCouncil/pkg/config"
	"TradeCouncil/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCacheService,
		ProvideBytesCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Market data
		ProvidePriceBook,
		ProvideMarketDataProvider,
		ProvideTickStream,
		ProvideTickPipeline,

		// Repositories
		ProvideHistoryStore,
		ProvidePublisher,
		ProvideRecommendationStore,

		// Use cases
		ProvideRegistry,
		ProvideAggregator,
		ProvideRiskCalculator,
		ProvideWatchlist,
		ProvideEngine,
		ProvideJobQueue,
		ProvideScheduler,
		ProvideHistoryHandler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
