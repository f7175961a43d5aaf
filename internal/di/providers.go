package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"MarketForge/internal/domain/repository"
	domsvc "MarketForge/internal/domain/service"
	"MarketForge/internal/handler/api"
	internalrepo "MarketForge/internal/repository"
	icache "MarketForge/internal/service/cache"
	"MarketForge/internal/services/dataset"
	"MarketForge/internal/services/synth"
	"MarketForge/internal/services/training"
	"MarketForge/internal/usecase"
	pkgcache "MarketForge/pkg/cache"
	pkgch "MarketForge/pkg/clickhouse"
	"MarketForge/pkg/config"
	pkgkafka "MarketForge/pkg/kafka"
	applogger "MarketForge/pkg/logger"
	"MarketForge/pkg/metrics"
	"MarketForge/pkg/queue"
	"MarketForge/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	db := cfg.ClickHouse.Database
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".daily_bars (symbol String, date Date, open Float64, high Float64, low Float64, close Float64, volume Int64) ENGINE=ReplacingMergeTree ORDER BY (symbol, date)",
		"CREATE TABLE IF NOT EXISTS " + db + ".intraday_bars (symbol String, ts DateTime, open Float64, high Float64, low Float64, close Float64, volume Int64) ENGINE=MergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS " + db + ".price_features (symbol String, ts DateTime, close Float64, volume Int64, ret_1 Nullable(Float64), sma_5 Nullable(Float64), sma_20 Nullable(Float64), vol_20 Nullable(Float64), momentum_proxy Nullable(Float64), sector Nullable(String)) ENGINE=MergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS " + db + ".supervised_rows (run_id String, symbol String, ts DateTime, close Float64, volume Int64, ret_1 Nullable(Float64), sma_5 Nullable(Float64), sma_20 Nullable(Float64), vol_20 Nullable(Float64), momentum_proxy Nullable(Float64), target Float64, split String) ENGINE=MergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS " + db + ".drift_psi (run_id String, feature String, psi Nullable(Float64), created_at DateTime) ENGINE=MergeTree ORDER BY (run_id, feature)",
		"CREATE TABLE IF NOT EXISTS " + db + ".symbol_attributes (symbol String, sector String) ENGINE=ReplacingMergeTree ORDER BY symbol",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when ingestion is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisClient creates a Redis client, or nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the ClickHouse bar store.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.BarStore {
	s := internalrepo.NewCHBarStore(chClient.DB(), cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideFeatureStore creates the ClickHouse feature store. The same store
// serves the symbol attribute lookups.
func ProvideFeatureStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHFeatureStore {
	s := internalrepo.NewCHFeatureStore(chClient.DB(), cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

func ProvideFeatureStoreIface(s *internalrepo.CHFeatureStore) repository.FeatureStore { return s }

// ProvideSectorCache creates the attribute cache: memory-over-Redis when
// Redis is available, plain memory otherwise.
func ProvideSectorCache(cfg *config.Config) pkgcache.Service {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache()
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(rc)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideAttributeStore wraps sector lookups with the cache layer.
func ProvideAttributeStore(s *internalrepo.CHFeatureStore, c pkgcache.Service, l *applogger.Logger) repository.AttributeStore {
	cs := internalrepo.NewCachedAttributeStore(s, c)
	cs.SetLogger(l)
	return cs
}

// ProvideDatasetStore creates the ClickHouse dataset store. The same store
// serves the drift reports.
func ProvideDatasetStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHDatasetStore {
	s := internalrepo.NewCHDatasetStore(chClient.DB(), cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

func ProvideDatasetStoreIface(s *internalrepo.CHDatasetStore) repository.DatasetStore { return s }

func ProvideDriftStore(s *internalrepo.CHDatasetStore) repository.DriftStore { return s }

// ProvideSummaryPublisher creates the Kafka run-summary publisher.
func ProvideSummaryPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaSummaryPublisher(producer, cfg.Kafka.SummaryTopic)
}

// ProvideRegistry creates the model registry: Redis-backed when available,
// in-memory otherwise.
func ProvideRegistry(rdb *redis.Client, cfg *config.Config) repository.Registry {
	if rdb == nil {
		return internalrepo.NewMemoryRegistry()
	}
	return internalrepo.NewRedisRegistry(rdb, cfg.Redis.Prefix)
}

// ProvideTrainer creates the HTTP client for the external training service.
func ProvideTrainer(cfg *config.Config) domsvc.ModelTrainer {
	return training.NewHTTPTrainer(cfg)
}

// ProvidePipelineRunner assembles the pipeline use case from config.
func ProvidePipelineRunner(
	bars repository.BarStore,
	feats repository.FeatureStore,
	ds repository.DatasetStore,
	dr repository.DriftStore,
	attrs repository.AttributeStore,
	pub repository.Publisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PipelineRunner {
	runner := usecase.NewPipelineRunner(bars, feats, ds, dr, attrs, pub, m, usecase.PipelineConfig{
		Session: synth.SessionConfig{
			StartOffset: cfg.Pipeline.SessionStart,
			EndOffset:   cfg.Pipeline.SessionEnd,
			Interval:    cfg.Pipeline.BarInterval,
		},
		Seed:              cfg.Pipeline.Seed,
		Horizon:           cfg.Pipeline.Horizon,
		Split:             dataset.SplitPolicy{CutoffDays: cfg.Pipeline.SplitCutoffDays, Fraction: cfg.Pipeline.SplitFraction},
		DriftBins:         cfg.Pipeline.DriftBins,
		MonitoredFeatures: cfg.Pipeline.MonitoredFeatures,
		Workers:           cfg.Pipeline.Workers,
	})
	runner.SetLogger(l)
	return runner
}

// ProvideRunTracker creates the single-flight run state.
func ProvideRunTracker() *usecase.RunTracker {
	return usecase.NewRunTracker()
}

// ProvideLiveHub creates the websocket broadcast hub.
func ProvideLiveHub(l *applogger.Logger) *api.LiveHub {
	hub := api.NewLiveHub()
	hub.SetLogger(l)
	return hub
}

// ProvideRunQueue creates the run queue with the pipeline job registered.
func ProvideRunQueue(
	runner *usecase.PipelineRunner,
	tracker *usecase.RunTracker,
	hub *api.LiveHub,
	cfg *config.Config,
	l *applogger.Logger,
) *queue.MemoryQueue {
	job := usecase.NewRunJob(runner, tracker)
	job.SetBroadcaster(hub)
	job.SetLogger(l)

	q := queue.NewMemoryQueue(l, &queue.QueueConfig{
		Workers:   1, // runs are exclusive
		QueueSize: cfg.Pipeline.QueueSize,
	})
	q.RegisterJob(job)
	return q
}

// ProvideQueries creates the read-side use case.
func ProvideQueries(feats repository.FeatureStore, dr repository.DriftStore) *usecase.QueriesUseCase {
	return usecase.NewQueriesUseCase(feats, dr)
}

// ProvideTrainingUseCase creates the training use case.
func ProvideTrainingUseCase(trainer domsvc.ModelTrainer, reg repository.Registry, l *applogger.Logger) *usecase.TrainingUseCase {
	uc := usecase.NewTrainingUseCase(trainer, reg)
	uc.SetLogger(l)
	return uc
}

// ProvideKafkaBarsHandler registers the daily bar ingestion handler.
func ProvideKafkaBarsHandler(bars repository.BarStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, bars, m)
}

// ProvidePipelineHandler creates the HTTP handler with its cache attached.
func ProvidePipelineHandler(
	runQueue *queue.MemoryQueue,
	tracker *usecase.RunTracker,
	queries *usecase.QueriesUseCase,
	trainingUC *usecase.TrainingUseCase,
	bars repository.BarStore,
	ds repository.DatasetStore,
	hub *api.LiveHub,
	rdb *redis.Client,
	cfg *config.Config,
	l *applogger.Logger,
) *api.PipelineHandler {
	h := api.NewPipelineHandler(runQueue, tracker, queries, trainingUC, bars, ds, hub)
	h.SetLogger(l)
	if rdb != nil {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	handler *api.PipelineHandler,
	hub *api.LiveHub,
	runQueue *queue.MemoryQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	pub repository.Publisher,
	l *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, handler, hub, runQueue, consumer, kh, chClient, pub, l)
}
