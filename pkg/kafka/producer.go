package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message pairs a partition key with a payload for publishing.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer wraps a kafka-go writer with JSON marshaling and publish
// metrics.
type Producer struct {
	writer *kafka.Writer
	comp   string
	met    *producerMetrics
}

// NewProducer builds a producer. Brokers are required; everything else
// has working defaults.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	return &Producer{
		writer: newWriter(cfg),
		comp:   cfg.Compression,
		met:    sharedProducerMetrics(),
	}, nil
}

func newWriter(cfg *ProducerConfig) *kafka.Writer {
	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodec(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
}

// Publish sends one message.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends several messages to one topic in a single write.
// Byte and string values pass through unchanged; anything else is
// JSON-marshaled.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	batch := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		value, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		batch[i] = kafka.Message{Topic: topic, Key: m.Key, Value: value, Time: time.Now()}
		size += int64(len(value))
	}

	err := p.writer.WriteMessages(ctx, batch...)
	p.met.observe(topic, p.comp, size, len(batch), time.Since(start), err)
	return err
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

var compressionCodecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// compressionCodec maps a codec name to kafka-go's constant. Unknown
// names fall back to gzip.
func compressionCodec(name string) kafka.Compression {
	if codec, ok := compressionCodecs[name]; ok {
		return codec
	}
	return kafka.Gzip
}

type producerMetrics struct {
	published *prometheus.CounterVec
	errs      *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	producerMetricsOnce sync.Once
	producerMetricsInst *producerMetrics
)

func sharedProducerMetrics() *producerMetrics {
	producerMetricsOnce.Do(func() {
		producerMetricsInst = &producerMetrics{
			published: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tradecouncil_kafka_producer_messages_total",
				Help: "Messages published to Kafka",
			}, []string{"topic", "compression", "result"}),
			errs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tradecouncil_kafka_producer_errors_total",
				Help: "Producer errors",
			}, []string{"topic"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "tradecouncil_kafka_producer_bytes_total",
				Help: "Payload bytes published",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "tradecouncil_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
	return producerMetricsInst
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.errs.WithLabelValues(topic).Inc()
	}
	m.published.WithLabelValues(topic, comp, result).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
