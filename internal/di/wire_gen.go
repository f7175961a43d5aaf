// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"MarketForge/pkg/config"
	"MarketForge/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	barStore := ProvideBarStore(client, cfg, logger)
	chFeatureStore := ProvideFeatureStore(client, cfg, logger)
	featureStore := ProvideFeatureStoreIface(chFeatureStore)
	chDatasetStore := ProvideDatasetStore(client, cfg, logger)
	datasetStore := ProvideDatasetStoreIface(chDatasetStore)
	driftStore := ProvideDriftStore(chDatasetStore)
	service := ProvideSectorCache(cfg)
	attributeStore := ProvideAttributeStore(chFeatureStore, service, logger)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	publisher := ProvideSummaryPublisher(producer, cfg)
	metrics := ProvideMetrics()
	pipelineRunner := ProvidePipelineRunner(barStore, featureStore, datasetStore, driftStore, attributeStore, publisher, metrics, cfg, logger)
	runTracker := ProvideRunTracker()
	liveHub := ProvideLiveHub(logger)
	memoryQueue := ProvideRunQueue(pipelineRunner, runTracker, liveHub, cfg, logger)
	queriesUseCase := ProvideQueries(featureStore, driftStore)
	modelTrainer := ProvideTrainer(cfg)
	redisClient := ProvideRedisClient(cfg)
	registry := ProvideRegistry(redisClient, cfg)
	trainingUseCase := ProvideTrainingUseCase(modelTrainer, registry, logger)
	pipelineHandler := ProvidePipelineHandler(memoryQueue, runTracker, queriesUseCase, trainingUseCase, barStore, datasetStore, liveHub, redisClient, cfg, logger)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	kafkaBarsHandler := ProvideKafkaBarsHandler(barStore, metrics, cfg)
	app := ProvideApp(cfg, pipelineHandler, liveHub, memoryQueue, consumer, kafkaBarsHandler, client, publisher, logger)
	return app, nil
}
