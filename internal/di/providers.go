package di

import (
	"context"
	"fmt"
	"time"

	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/handler/api"
	mid "TradeCouncil/internal/middleware"
	internalrepo "TradeCouncil/internal/repository"
	icache "TradeCouncil/internal/service/cache"
	"TradeCouncil/internal/service/marketdata"
	"TradeCouncil/internal/service/ratelimit"
	"TradeCouncil/internal/services/strategies"
	"TradeCouncil/internal/usecase"
	pkgcache "TradeCouncil/pkg/cache"
	pkgch "TradeCouncil/pkg/clickhouse"
	"TradeCouncil/pkg/config"
	xhttp "TradeCouncil/pkg/http"
	pkgkafka "TradeCouncil/pkg/kafka"
	"TradeCouncil/pkg/logger"
	"TradeCouncil/pkg/metrics"
	"TradeCouncil/pkg/queue"
	"TradeCouncil/pkg/server"
)

// ProvideLogger creates the process logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder, or a no-op one when
// metrics are disabled.
func ProvideMetrics(cfg *config.Config) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideRedisCache dials Redis. Returns nil when Redis is disabled;
// downstream providers fall back to in-process backends.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService picks the cache backend: layered over Redis when
// available, memory-only otherwise.
func ProvideCacheService(cfg *config.Config, redisCache *pkgcache.RedisCache) pkgcache.Service {
	if redisCache != nil {
		return pkgcache.NewLayeredCache(redisCache,
			pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize))
	}
	return pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		pkgcache.WithMemoryCleanup(cfg.Cache.CleanupInterval))
}

// ProvideBytesCache backs the candle payload cache with Redis when
// available so replicas share fetches, a TTL map otherwise.
func ProvideBytesCache(redisCache *pkgcache.RedisCache) icache.BytesCache {
	if redisCache != nil {
		return icache.NewRedisCache(redisCache.Client())
	}
	return icache.NewTTLCache()
}

// ProvidePriceBook creates the live-price book fed by the tick pipeline.
func ProvidePriceBook(cfg *config.Config) *marketdata.PriceBook {
	return marketdata.NewPriceBook(cfg.MarketData.CacheTTL)
}

// ProvideMarketDataProvider creates the REST market-data client.
func ProvideMarketDataProvider(
	cfg *config.Config,
	bytesCache icache.BytesCache,
	prices *marketdata.PriceBook,
	lgr *logger.Logger,
) drepo.MarketDataProvider {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.MarketData.RequestTimeout))
	return marketdata.NewClient(httpClient, bytesCache, prices, marketdata.Config{
		BaseURL:  cfg.MarketData.BaseURL,
		Limit:    cfg.MarketData.KlineLimit,
		CacheTTL: cfg.MarketData.CacheTTL,
	}, lgr)
}

// ProvideTickStream creates the exchange WebSocket stream, or nil when
// live ticks are disabled.
func ProvideTickStream(cfg *config.Config, lgr *logger.Logger) drepo.TickStream {
	if !cfg.MarketData.StreamEnabled {
		return nil
	}
	return marketdata.NewStream(
		cfg.MarketData.StreamURL,
		cfg.Watchlist.Assets,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		lgr,
	)
}

// ProvideTickPipeline supervises the stream into the price book.
func ProvideTickPipeline(
	cfg *config.Config,
	stream drepo.TickStream,
	prices *marketdata.PriceBook,
	m drepo.Metrics,
	lgr *logger.Logger,
) *mid.TickPipeline {
	if stream == nil {
		return nil
	}
	return mid.NewTickPipeline(stream, prices, m, lgr,
		mid.WithMaxRPS(cfg.MarketData.TickMaxRPS),
		mid.WithReconnectAttempts(cfg.MarketData.ReconnectAttempts),
		mid.WithRetryDelay(cfg.MarketData.ReconnectDelay),
	)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when
// history persistence is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
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
	return client, nil
}

// ProvideHistoryStore creates the recommendation history store and its
// schema. Falls back to the disabled store when ClickHouse is off.
func ProvideHistoryStore(chClient *pkgch.Client, cfg *config.Config) (drepo.HistoryStore, error) {
	if chClient == nil {
		return internalrepo.DisabledHistory{}, nil
	}

	store := internalrepo.NewClickHouseHistory(chClient, cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
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

// ProvidePublisher wraps the producer as a recommendation publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.RecommendationPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaRecommendationPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates the consumer that feeds recommendations
// into history. Needs both Kafka and ClickHouse on; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.ClickHouse.Enabled {
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
		pkgkafka.WithConsumerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideHistoryHandler handles recommendation messages into history.
func ProvideHistoryHandler(history drepo.HistoryStore, m drepo.Metrics, cfg *config.Config) *usecase.RecommendationHistoryHandler {
	return usecase.NewRecommendationHistoryHandler(cfg.Kafka.Topic, history, m)
}

// ProvideRecommendationStore keeps the latest recommendation per asset,
// mirrored through the cache so restarts can warm from Redis.
func ProvideRecommendationStore(c pkgcache.Service, lgr *logger.Logger) drepo.RecommendationStore {
	return internalrepo.NewMemoryRecommendationStore(
		internalrepo.WithCacheMirror(c),
		internalrepo.WithStoreLogger(lgr),
	)
}

// ProvideRegistry creates the strategy registry with the builtin set.
func ProvideRegistry() service.Registry {
	return strategies.NewRegistry()
}

// ProvideAggregator creates the consensus aggregator.
func ProvideAggregator(reg service.Registry, m drepo.Metrics, lgr *logger.Logger) *usecase.ConsensusAggregator {
	return usecase.NewConsensusAggregator(reg, m, lgr)
}

// ProvideRiskCalculator creates the risk parameter calculator.
func ProvideRiskCalculator(cfg *config.Config) *usecase.RiskCalculator {
	return usecase.NewRiskCalculator(cfg.Engine.StopLossPct, cfg.Engine.TakeProfitPct)
}

// ProvideWatchlist creates the watchlist seeded from config.
func ProvideWatchlist(c pkgcache.Service, lgr *logger.Logger, cfg *config.Config) *usecase.Watchlist {
	return usecase.NewWatchlist(c, lgr, cfg.Watchlist.Assets)
}

// ProvideEngine creates the decision engine.
func ProvideEngine(
	reg service.Registry,
	agg *usecase.ConsensusAggregator,
	risk *usecase.RiskCalculator,
	watchlist *usecase.Watchlist,
	provider drepo.MarketDataProvider,
	store drepo.RecommendationStore,
	publisher drepo.RecommendationPublisher,
	m drepo.Metrics,
	lgr *logger.Logger,
	cfg *config.Config,
) *usecase.DecisionEngine {
	return usecase.NewDecisionEngine(reg, agg, risk, watchlist, provider, store, publisher, m, lgr,
		usecase.EngineOptions{
			ConsensusThreshold: cfg.Engine.ConsensusThreshold,
			FallbackPrice:      cfg.Engine.FallbackPrice,
			FetchTimeout:       cfg.Engine.FetchTimeout,
		})
}

// ProvideJobQueue creates the Redis-backed analysis queue with the
// analysis job registered. Only queue-mode scheduling needs it.
func ProvideJobQueue(
	cfg *config.Config,
	redisCache *pkgcache.RedisCache,
	engine *usecase.DecisionEngine,
	lgr *logger.Logger,
) *queue.RedisQueue {
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Mode != config.SchedulerModeQueue || redisCache == nil {
		return nil
	}

	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, redisCache.Client(), queue.ModeProducerConsumer,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))

	q.RegisterJob(usecase.NewAnalysisJob(engine, lgr))
	return q
}

// ProvideScheduler creates the watchlist sweep scheduler, or nil when
// disabled.
func ProvideScheduler(
	cfg *config.Config,
	engine *usecase.DecisionEngine,
	jobQueue *queue.RedisQueue,
	lgr *logger.Logger,
) *usecase.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}

	var qsvc queue.QueueService
	if jobQueue != nil {
		qsvc = jobQueue
	}

	return usecase.NewScheduler(engine, qsvc, ratelimit.New(), lgr, usecase.SchedulerOptions{
		Interval:  cfg.Scheduler.Interval,
		Timeframe: cfg.Scheduler.Timeframe,
		Mode:      usecase.SchedulerMode(cfg.Scheduler.Mode),
		Burst:     cfg.Scheduler.Burst,
		Refill:    cfg.Scheduler.Refill,
	})
}

// ProvideHTTPHandler creates the Echo handler surface.
func ProvideHTTPHandler(engine *usecase.DecisionEngine, history drepo.HistoryStore, lgr *logger.Logger) xhttp.Handler {
	return api.NewDecisionHandler(engine, history, lgr)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	engine *usecase.DecisionEngine,
	pipeline *mid.TickPipeline,
	scheduler *usecase.Scheduler,
	jobQueue *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	historyHandler *usecase.RecommendationHistoryHandler,
	publisher drepo.RecommendationPublisher,
	cacheSvc pkgcache.Service,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	opts := []server.Option{
		server.WithPublisher(publisher),
		server.WithCache(cacheSvc),
	}
	if pipeline != nil {
		opts = append(opts, server.WithTickPipeline(pipeline))
	}
	if scheduler != nil {
		opts = append(opts, server.WithScheduler(scheduler))
	}
	if jobQueue != nil {
		opts = append(opts, server.WithJobQueue(jobQueue))
	}
	if consumer != nil {
		opts = append(opts, server.WithKafkaConsumer(consumer, historyHandler))
	}
	if chClient != nil {
		opts = append(opts, server.WithClickHouse(chClient))
	}

	app := server.New(cfg, lgr, engine, opts...)
	app.SetHTTPHandler(httpHandler)
	return app
}
