//go:build wireinject
// +build wireinject

package di

import (
	"MarketForge/pkg/config"
	"MarketForge/pkg/server"

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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideSectorCache,
		ProvideBarStore,
		ProvideFeatureStore,
		ProvideFeatureStoreIface,
		ProvideAttributeStore,
		ProvideDatasetStore,
		ProvideDatasetStoreIface,
		ProvideDriftStore,
		ProvideSummaryPublisher,
		ProvideRegistry,

		// Services
		ProvideTrainer,

		// Use cases
		ProvidePipelineRunner,
		ProvideRunTracker,
		ProvideRunQueue,
		ProvideQueries,
		ProvideTrainingUseCase,
		ProvideKafkaBarsHandler,

		// HTTP
		ProvideLiveHub,
		ProvidePipelineHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
