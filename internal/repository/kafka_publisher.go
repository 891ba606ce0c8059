package repository

import (
	"context"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	pkgkafka "TradeCouncil/pkg/kafka"
)

// KafkaRecommendationPublisher fans published recommendations out to Kafka.
// The asset is the message key so all recommendations for one asset land on
// the same partition and downstream consumers see them in order.
type KafkaRecommendationPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRecommendationPublisher creates a publisher on topic.
func NewKafkaRecommendationPublisher(producer *pkgkafka.Producer, topic string) *KafkaRecommendationPublisher {
	return &KafkaRecommendationPublisher{producer: producer, topic: topic}
}

var _ drepo.RecommendationPublisher = (*KafkaRecommendationPublisher)(nil)

func (p *KafkaRecommendationPublisher) Publish(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil || rec.Asset == "" {
		return models.ErrInvalidInput
	}
	return p.producer.Publish(ctx, p.topic, []byte(rec.Asset), rec)
}

func (p *KafkaRecommendationPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher discards recommendations. Used when Kafka is disabled in
// configuration so the engine's publish path stays unconditional.
type NoopPublisher struct{}

var _ drepo.RecommendationPublisher = NoopPublisher{}

func (NoopPublisher) Publish(ctx context.Context, rec *models.Recommendation) error { return nil }

func (NoopPublisher) Close() error { return nil }
