package usecase

import (
	"context"
	"time"

	"TradeCouncil/internal/service/ratelimit"
	"TradeCouncil/pkg/logger"
	"TradeCouncil/pkg/queue"
)

// SchedulerMode selects how a sweep executes its analyses.
type SchedulerMode string

const (
	// ScheduleInline runs analyses one by one in the ticker goroutine.
	ScheduleInline SchedulerMode = "inline"
	// ScheduleQueue enqueues one analysis task per asset; queue workers
	// pick them up.
	ScheduleQueue SchedulerMode = "queue"
)

// SchedulerOptions tune the periodic watchlist sweep.
type SchedulerOptions struct {
	Interval  time.Duration
	Timeframe string
	Mode      SchedulerMode
	// Per-asset token bucket: Burst tokens, refilled at Refill per second.
	Burst  float64
	Refill float64
}

func (o *SchedulerOptions) fillDefaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeframe == "" {
		o.Timeframe = "1h"
	}
	if o.Mode != ScheduleQueue {
		o.Mode = ScheduleInline
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Refill <= 0 {
		o.Refill = 0.1
	}
}

// Scheduler sweeps the watchlist on a fixed interval and runs (or
// enqueues) one analysis per asset. A per-asset token bucket keeps manual
// API traffic and overlapping sweeps from hammering the same symbol.
type Scheduler struct {
	engine  *DecisionEngine
	queue   queue.QueueService
	limiter *ratelimit.Limiter
	log     *logger.Logger
	opts    SchedulerOptions

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewScheduler(engine *DecisionEngine, q queue.QueueService, limiter *ratelimit.Limiter, log *logger.Logger, opts SchedulerOptions) *Scheduler {
	opts.fillDefaults()
	if q == nil {
		opts.Mode = ScheduleInline
	}
	return &Scheduler{
		engine:  engine,
		queue:   q,
		limiter: limiter,
		log:     log,
		opts:    opts,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("scheduler started",
		logger.Duration("interval", s.opts.Interval),
		logger.String("mode", string(s.opts.Mode)),
		logger.String("timeframe", s.opts.Timeframe))
	go s.loop(ctx)
	return nil
}

// Stop ends the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	assets, err := s.engine.GetWatchlist(ctx)
	if err != nil {
		s.log.Warn("scheduler sweep skipped", logger.Error(err))
		return
	}

	for _, asset := range assets {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}
		if !s.limiter.Allow(asset, s.opts.Burst, s.opts.Refill) {
			s.log.Debug("scheduler throttled", logger.String("asset", asset))
			continue
		}
		s.dispatch(ctx, asset)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, asset string) {
	if s.opts.Mode == ScheduleQueue {
		task := AnalysisTask{Asset: asset, Timeframe: s.opts.Timeframe}
		if err := s.queue.PublishMessage(ctx, AnalysisTaskType, task); err != nil {
			s.log.Warn("analysis enqueue failed", logger.String("asset", asset), logger.Error(err))
		}
		return
	}

	rec := s.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: asset, Timeframe: s.opts.Timeframe})
	if rec.Error != "" {
		s.log.Debug("scheduled analysis degraded",
			logger.String("asset", asset),
			logger.String("error", rec.Error))
	}
}
