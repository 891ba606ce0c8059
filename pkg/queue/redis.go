package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"TradeCouncil/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueMode selects which halves of the queue a process runs.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const (
	popTimeout    = time.Second
	retrySweepGap = 5 * time.Second
	startPingWait = 5 * time.Second
)

// RedisQueue is a job queue over three Redis structures: a list of ready
// messages, a sorted set of pending retries scored by due time, and a
// dead-letter list for messages that burned every attempt.
type RedisQueue struct {
	log    *logger.Logger
	cfg    *QueueConfig
	rdb    *redis.Client
	mode   QueueMode
	prefix string

	mu       sync.RWMutex
	handlers map[string]Job
	running  bool

	runCtx context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedisQueue builds a queue in the given mode. Nothing touches Redis
// until Start.
func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		log:      lgr,
		cfg:      cfg,
		rdb:      client,
		mode:     mode,
		prefix:   "tradecouncil:queue",
		handlers: make(map[string]Job),
		runCtx:   ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob subscribes a job to its message type. Producer-only queues
// have no dispatch loop, so registrations there are dropped with a
// warning.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.log.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.handlers[job.Type()] = job
	r.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// RegisterJobs registers several jobs at once.
func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

// Start pings Redis and, unless producer-only, launches the worker pool
// and the retry sweeper.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), startPingWait)
	defer cancel()
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if r.mode == ModeProducerOnly {
		r.log.Info("redis publisher started", logger.String("addr", r.rdb.Options().Addr))
		return nil
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retrySweeper()

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("addr", r.rdb.Options().Addr),
		logger.String("mode", r.mode.String()))
	return nil
}

// Stop cancels workers and waits for them up to the context deadline.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.log.Info("stopping redis queue")
	r.cancel()
	close(r.stopCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		r.log.Warn("queue workers did not drain in time", logger.Error(ctx.Err()))
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}
}

// Enqueue wraps payload in a Message envelope and pushes it onto the
// ready list. When this process also consumes, unknown message types are
// rejected up front instead of dying in dispatch.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.handlers[msgType]
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	b, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.rdb.LPush(ctx, r.readyKey(), b).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.log.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stopCh:
			r.log.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-r.runCtx.Done():
			return
		default:
		}
		r.popOne()
	}
}

// popOne blocks up to popTimeout for the next ready message and runs it.
func (r *RedisQueue) popOne() {
	ctx, cancel := context.WithTimeout(r.runCtx, popTimeout)
	defer cancel()

	res, err := r.rdb.BRPop(ctx, popTimeout, r.readyKey()).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return
	default:
		r.log.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(res) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("unmarshal message", logger.Error(err))
		return
	}
	r.dispatch(msg)
}

func (r *RedisQueue) dispatch(msg Message) {
	r.mu.RLock()
	job, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	started := time.Now()
	err := job.Handle(r.runCtx, rawPayload(msg.Payload, r.log))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.log.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(started).Milliseconds()))
		return
	}
	r.retryOrBury(msg, job, err)
}

// rawPayload re-encodes decoded JSON maps as RawMessage so ParsePayload
// can target concrete types.
func rawPayload(payload interface{}, log *logger.Logger) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Error("normalize payload", logger.Error(err))
		return payload
	}
	return json.RawMessage(b)
}

// retryOrBury schedules one more attempt for msg, or moves it to the
// dead-letter list once the retry budget is spent.
func (r *RedisQueue) retryOrBury(msg Message, job Job, cause error) {
	r.log.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(cause))

	if msg.Attempts >= r.cfg.RetryLimit {
		r.log.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.bury(msg)
		return
	}

	msg.Attempts++
	due := time.Now().Add(r.cfg.RetryDelay)
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.rdb.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: b,
	}).Err()
	if err != nil {
		r.log.Error("zadd retry", logger.Error(err))
		return
	}
	r.log.Info("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", due.Format(time.RFC3339)))
}

func (r *RedisQueue) bury(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.rdb.LPush(context.Background(), r.deadKey(), b).Err(); err != nil {
		r.log.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retrySweeper() {
	defer r.wg.Done()
	r.log.Info("retry sweeper started")

	ticker := time.NewTicker(retrySweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.log.Info("retry sweeper stopping")
			return
		case <-r.runCtx.Done():
			return
		case <-ticker.C:
			r.promoteDueRetries()
		}
	}
}

// promoteDueRetries moves every retry whose due time has passed back onto
// the ready list, atomically per message.
func (r *RedisQueue) promoteDueRetries() {
	due, err := r.rdb.ZRangeByScore(r.runCtx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("fetch retry messages", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		if r.runCtx.Err() != nil {
			return
		}
		pipe := r.rdb.TxPipeline()
		pipe.ZRem(r.runCtx, r.retryKey(), member)
		pipe.LPush(r.runCtx, r.readyKey(), member)
		if _, err := pipe.Exec(r.runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (r *RedisQueue) readyKey() string { return r.prefix + ":messages" }

func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }

func (r *RedisQueue) deadKey() string { return r.prefix + ":dlq" }
