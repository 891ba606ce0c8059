package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"TradeCouncil/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

const (
	fetchPoll      = 3 * time.Second
	commitTimeout  = 2 * time.Second
	commitAttempts = 3
	loadHighWater  = 0.8
	loadPause      = 10 * time.Millisecond
)

// errShutdown aborts in-flight retry loops during Stop.
var errShutdown = errors.New("consumer shutting down")

// record is one fetched message on its way through the worker pool.
type record struct {
	topic   string
	payload []byte
	raw     kafka.Message
}

// Consumer fans registered topics into a shared worker pool. Records
// from the same partition are handled one at a time, so partition order
// survives the fan-out. Failed records retry with jittered backoff and
// move to the dead-letter topic once attempts run out. Offsets are
// committed only on success or after dead-letter routing.
type Consumer struct {
	cfg  *ConsumerConfig
	log  *logger.Logger
	hook ConsumerHook

	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler

	inbox    chan *record
	quit     chan struct{}
	stopOnce sync.Once
	readerWG sync.WaitGroup
	workerWG sync.WaitGroup

	partMu sync.Mutex
	parts  map[string]map[int]*sync.Mutex

	dlq *kafka.Writer
	met *consumerMetrics
}

// NewConsumer builds a consumer. Brokers are required.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	lgr := cfg.Logger
	if lgr == nil {
		lgr = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      lgr,
		hook:     NoopHook{},
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		inbox:    make(chan *record, cfg.BufferSize),
		quit:     make(chan struct{}),
		parts:    make(map[string]map[int]*sync.Mutex),
		met:      sharedConsumerMetrics(),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// WithConsumerHook installs lifecycle hooks around message handling.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler subscribes a handler to its topic. Register all
// handlers before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, taken := c.handlers[topic]; taken {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per registered topic and launches the worker
// pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.log.Info("kafka consumer topic registered", logger.String("topic", topic))
	}

	c.workerWG.Add(c.cfg.WorkerCount)
	for i := 0; i < c.cfg.WorkerCount; i++ {
		go c.worker()
	}

	c.readerWG.Add(len(c.readers))
	for topic, reader := range c.readers {
		go c.fetchLoop(topic, reader)
	}

	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)))
	return nil
}

// Stop drains the pipeline and closes the readers. Fetch loops exit
// first so the inbox can be closed without racing a send, then workers
// finish whatever they already pulled.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.log.Info("stopping kafka consumer")
		close(c.quit)

		if stopErr = awaitGroup(ctx, &c.readerWG); stopErr == nil {
			close(c.inbox)
			stopErr = awaitGroup(ctx, &c.workerWG)
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Error("close kafka reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dead-letter writer", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return stopErr
}

func awaitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer shutdown: %w", ctx.Err())
	}
}

// fetchLoop polls one topic and feeds the worker pool. Fetches run
// under a short deadline so the loop notices quit promptly. Offsets are
// not committed here; process does that once handling settles.
func (c *Consumer) fetchLoop(topic string, reader *kafka.Reader) {
	defer c.readerWG.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), fetchPoll)
		km, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Error("kafka fetch", logger.String("topic", topic), logger.Error(err))
			}
			continue
		}

		if !c.enqueue(&record{topic: topic, payload: km.Value, raw: km}) {
			return
		}
	}
}

// enqueue hands a record to the worker pool. It never drops: a full
// inbox makes the caller wait, which slows the topic fetch down.
// Returns false once shutdown begins.
func (c *Consumer) enqueue(rec *record) bool {
	for {
		select {
		case <-c.quit:
			return false
		case c.inbox <- rec:
			c.met.depth.WithLabelValues(rec.topic).Set(float64(len(c.inbox)))
			c.met.load.WithLabelValues(rec.topic).Set(c.load())
			return true
		default:
		}

		load := c.load()
		c.met.load.WithLabelValues(rec.topic).Set(load)
		if load > loadHighWater {
			time.Sleep(loadPause)
		} else {
			runtime.Gosched()
		}
	}
}

func (c *Consumer) load() float64 {
	return float64(len(c.inbox)) / float64(cap(c.inbox))
}

func (c *Consumer) worker() {
	defer c.workerWG.Done()
	for rec := range c.inbox {
		if handler := c.handlers[rec.topic]; handler != nil {
			c.process(handler, rec)
		}
	}
}

// process runs one record through the handler with retries, panic
// recovery, dead-letter routing and offset commit.
func (c *Consumer) process(handler MessageHandler, rec *record) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in message handler",
				logger.String("topic", rec.topic),
				logger.Any("panic", r))
		}
	}()

	// One record in flight per partition keeps partition order.
	release := c.lockPartition(rec.topic, rec.raw.Partition)
	defer release()

	err := c.deliver(handler, rec)
	if errors.Is(err, errShutdown) {
		return
	}
	if err != nil {
		c.hook.OnError(context.Background(), rec.topic, rec.raw, rec.payload, err)
		c.log.Error("message handling failed",
			logger.String("topic", rec.topic),
			logger.Error(err))
		c.routeToDLQ(rec)
	}

	// Without a dead-letter topic a failed record stays uncommitted so
	// the group redelivers it.
	if err == nil || c.dlq != nil {
		c.commit(rec)
	}

	c.met.handleSec.WithLabelValues(rec.topic).Observe(time.Since(start).Seconds())
}

// deliver attempts the handler up to RetryMax+1 times, weaving the
// lifecycle hook around each attempt. A veto from BeforeHandle is not
// retried.
func (c *Consumer) deliver(handler MessageHandler, rec *record) error {
	for attempt := 1; ; attempt++ {
		ctx, raw, payload, err := c.hook.BeforeHandle(context.Background(), rec.topic, rec.raw, rec.payload)
		if err != nil {
			return err
		}

		err = handler.Handle(ctx, payload)
		c.hook.AfterHandle(ctx, rec.topic, raw, payload, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}

		c.hook.OnError(ctx, rec.topic, raw, payload, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.quit:
			return errShutdown
		}
	}
}

func (c *Consumer) routeToDLQ(rec *record) {
	if c.dlq == nil {
		return
	}
	msg := kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     rec.raw.Key,
		Value:   rec.payload,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(rec.topic)}},
	}
	if err := c.dlq.WriteMessages(context.Background(), msg); err != nil {
		c.log.Error("dead-letter write", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
	}
}

func (c *Consumer) commit(rec *record) {
	reader := c.readers[rec.topic]
	if reader == nil {
		return
	}

	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		err = reader.CommitMessages(ctx, rec.raw)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("commit offset", logger.String("topic", rec.topic), logger.Error(err))
}

// lockPartition acquires the mutex for a topic/partition pair, creating
// it on first use, and returns the release func.
func (c *Consumer) lockPartition(topic string, partition int) func() {
	c.partMu.Lock()
	byPart := c.parts[topic]
	if byPart == nil {
		byPart = make(map[int]*sync.Mutex)
		c.parts[topic] = byPart
	}
	mu := byPart[partition]
	if mu == nil {
		mu = &sync.Mutex{}
		byPart[partition] = mu
	}
	c.partMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// backoffWithJitter doubles floor per attempt, caps the result at ceil,
// and subtracts up to half of it as jitter.
func backoffWithJitter(floor, ceil time.Duration, attempt int) time.Duration {
	if floor <= 0 {
		floor = 50 * time.Millisecond
	}
	if ceil < floor {
		ceil = floor
	}

	d := floor << uint(attempt-1)
	if d > ceil || d < floor {
		d = ceil
	}
	half := int64(d) / 2
	if half <= 0 {
		return d
	}
	return d - time.Duration(rand.Int63n(half))
}

// Consumer metrics are package-wide; multiple consumers share the same
// vectors, split by topic label.
type consumerMetrics struct {
	depth     *prometheus.GaugeVec
	load      *prometheus.GaugeVec
	handleSec *prometheus.HistogramVec
}

var (
	consumerMetricsOnce sync.Once
	consumerMetricsInst *consumerMetrics
)

func sharedConsumerMetrics() *consumerMetrics {
	consumerMetricsOnce.Do(func() {
		consumerMetricsInst = &consumerMetrics{
			depth: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tradecouncil_kafka_consumer_queue_depth",
				Help: "Messages waiting in the consumer buffer",
			}, []string{"topic"}),
			load: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tradecouncil_kafka_consumer_queue_fullness",
				Help: "Consumer buffer utilization (len/cap)",
			}, []string{"topic"}),
			handleSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "tradecouncil_kafka_consumer_handle_seconds",
				Help: "Handling time per message",
			}, []string{"topic"}),
		}
	})
	return consumerMetricsInst
}
