package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	drepo "TradeCouncil/internal/domain/repository"
	mid "TradeCouncil/internal/middleware"
	"TradeCouncil/internal/usecase"
	pkgcache "TradeCouncil/pkg/cache"
	pkgch "TradeCouncil/pkg/clickhouse"
	"TradeCouncil/pkg/config"
	xhttp "TradeCouncil/pkg/http"
	pkgkafka "TradeCouncil/pkg/kafka"
	"TradeCouncil/pkg/logger"
	"TradeCouncil/pkg/queue"
)

// App owns the process lifecycle: it starts the decision engine and its
// supporting services, serves HTTP, and tears everything down in order
// on SIGINT/SIGTERM.
type App struct {
	cfg *config.Config
	log *logger.Logger

	engine      *usecase.DecisionEngine
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	pipeline   *mid.TickPipeline
	scheduler  *usecase.Scheduler
	jobQueue   *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	historyJob pkgkafka.MessageHandler

	publisher drepo.RecommendationPublisher
	cache     pkgcache.Service
	chClient  *pkgch.Client
}

// Option attaches an optional component to the App. Components left
// unset are simply skipped at start and shutdown.
type Option func(*App)

// WithTickPipeline attaches the live tick pipeline.
func WithTickPipeline(p *mid.TickPipeline) Option {
	return func(a *App) { a.pipeline = p }
}

// WithScheduler attaches the watchlist sweep scheduler.
func WithScheduler(s *usecase.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithJobQueue attaches the Redis-backed analysis queue.
func WithJobQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.jobQueue = q }
}

// WithKafkaConsumer attaches the consumer and the handler it feeds.
func WithKafkaConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.historyJob = h
	}
}

// WithPublisher attaches the recommendation publisher for closing at
// shutdown. Publishing itself happens inside the engine.
func WithPublisher(p drepo.RecommendationPublisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithCache attaches the cache backend for closing at shutdown.
func WithCache(c pkgcache.Service) Option {
	return func(a *App) { a.cache = c }
}

// WithClickHouse attaches the ClickHouse client for closing at shutdown.
func WithClickHouse(c *pkgch.Client) Option {
	return func(a *App) { a.chClient = c }
}

// New assembles the application around its always-present core: config,
// logger, and the decision engine.
func New(cfg *config.Config, log *logger.Logger, engine *usecase.DecisionEngine, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		log:    log,
		engine: engine,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.engine.Initialize(ctx); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			return fmt.Errorf("job queue start: %w", err)
		}
	}

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.log.Info("tick pipeline started",
			logger.String("stream", a.cfg.MarketData.StreamURL))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler start: %w", err)
		}
	}

	if a.consumer != nil && a.historyJob != nil {
		a.consumer.RegisterHandler(a.historyJob)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", logger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", logger.String("topic", a.historyJob.Topic()))
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithServerLogger(a.log),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops work producers first, then the serving surfaces, then
// the infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", logger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", logger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Error(err))
		}
	}

	if a.cache != nil {
		if closer, ok := a.cache.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				a.log.Warn("cache close error", logger.Error(err))
			}
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
