package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/pkg/logger"
)

// PriceSink receives validated live ticks. The market-data price book
// satisfies this.
type PriceSink interface {
	Update(tick *models.Tick)
}

// TickPipeline supervises the exchange tick stream: it connects,
// subscribes, validates and throttles incoming ticks, and feeds the
// price sink. Broken connections are retried up to the configured
// attempt cap before the pipeline gives up.
type TickPipeline struct {
	stream  drepo.TickStream
	sink    PriceSink
	metrics drepo.Metrics
	log     *logger.Logger

	maxRPS        int
	maxReconnects int
	retryDelay    time.Duration

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	lastSeen map[string]time.Time
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS caps accepted ticks per second per asset.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithReconnectAttempts caps consecutive connect failures before the
// pipeline stops trying.
func WithReconnectAttempts(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxReconnects = n
		}
	}
}

// WithRetryDelay sets the wait between initial connect attempts.
func WithRetryDelay(d time.Duration) PipelineOption {
	return func(p *TickPipeline) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

// NewTickPipeline builds a pipeline over the given stream and sink.
func NewTickPipeline(stream drepo.TickStream, sink PriceSink, metrics drepo.Metrics, lgr *logger.Logger, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		stream:        stream,
		sink:          sink,
		metrics:       metrics,
		log:           lgr,
		maxRPS:        20,
		maxReconnects: 5,
		retryDelay:    5 * time.Second,
		lastSeen:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the supervision loop. Calling Start twice is a no-op.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.run(runCtx)
}

// Stop tears the stream down and waits for the loop to exit.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	done := p.doneCh
	p.mu.Unlock()

	cancel()
	_ = p.stream.Close()
	<-done
}

func (p *TickPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	if !p.establish(ctx) {
		return
	}

	for {
		ticks, errs := p.stream.Read(ctx)
		if !p.consume(ctx, ticks, errs) {
			return
		}
		if !p.reestablish(ctx) {
			return
		}
	}
}

// establish performs the initial connect+subscribe with bounded
// retries.
func (p *TickPipeline) establish(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := p.stream.Connect(ctx)
		if err == nil {
			if err = p.stream.Subscribe(ctx); err == nil {
				return true
			}
		}

		p.metrics.RecordError("stream_connect")
		p.log.Warn("tick stream connect failed",
			logger.Int("attempt", attempt),
			logger.Error(err))

		if attempt >= p.maxReconnects {
			p.log.Error("tick stream unavailable",
				logger.Int("attempts", attempt))
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.retryDelay):
		}
	}
}

// reestablish recovers a broken stream. The stream itself waits its
// reconnect delay, so this loop only counts attempts.
func (p *TickPipeline) reestablish(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := p.stream.Reconnect(ctx)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		p.metrics.RecordError("stream_reconnect")
		p.log.Warn("tick stream reconnect failed",
			logger.Int("attempt", attempt),
			logger.Error(err))

		if attempt >= p.maxReconnects {
			p.log.Error("tick stream unavailable",
				logger.Int("attempts", attempt))
			return false
		}
	}
}

// consume drains the tick and error channels. Returns false when the
// context is done, true when the stream broke and a reconnect should
// follow.
func (p *TickPipeline) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case tick, ok := <-ticks:
			if !ok {
				// The stream may have buffered its error before closing.
				p.noteReadError(errs)
				return true
			}
			p.handle(tick)
		case err, ok := <-errs:
			if ok && err != nil {
				p.metrics.RecordError("stream_read")
				p.log.Warn("tick stream read error", logger.Error(err))
			}
			p.drain(ticks)
			return true
		}
	}
}

func (p *TickPipeline) noteReadError(errs <-chan error) {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			p.metrics.RecordError("stream_read")
			p.log.Warn("tick stream read error", logger.Error(err))
		}
	default:
	}
}

// drain consumes ticks still buffered after the stream reported an
// error.
func (p *TickPipeline) drain(ticks <-chan *models.Tick) {
	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			p.handle(tick)
		default:
			return
		}
	}
}

func (p *TickPipeline) handle(tick *models.Tick) {
	if err := validateTick(tick); err != nil {
		p.metrics.RecordError("tick_invalid")
		return
	}
	if !p.allow(tick.Asset, time.Now()) {
		p.metrics.RecordError("tick_throttle")
		return
	}

	p.sink.Update(tick)
	p.metrics.RecordLastPrice(tick.Asset, tick.Price)
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Asset == "" {
		return fmt.Errorf("asset empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

// allow enforces the per-asset tick rate.
func (p *TickPipeline) allow(asset string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.lastSeen[asset]
	if last.IsZero() {
		p.lastSeen[asset] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[asset] = now
	return true
}
