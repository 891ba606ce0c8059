package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	pkgkafka "TradeCouncil/pkg/kafka"
)

// RecommendationHistoryHandler consumes published Recommendations and
// lands them in the history store.
type RecommendationHistoryHandler struct {
	topic   string
	history drepo.HistoryStore
	metrics drepo.Metrics
}

var _ pkgkafka.MessageHandler = (*RecommendationHistoryHandler)(nil)

func NewRecommendationHistoryHandler(topic string, history drepo.HistoryStore, metrics drepo.Metrics) *RecommendationHistoryHandler {
	return &RecommendationHistoryHandler{topic: topic, history: history, metrics: metrics}
}

func (h *RecommendationHistoryHandler) Topic() string { return h.topic }

func (h *RecommendationHistoryHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.Recommendation
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("history_unmarshal")
		return err
	}
	if rec.Asset == "" {
		h.metrics.RecordError("history_unmarshal")
		// Nothing to retry on a malformed record, drop it.
		return nil
	}

	start := time.Now()
	if err := h.history.Insert(ctx, &rec); err != nil {
		h.metrics.RecordError("history_insert")
		return err
	}
	h.metrics.RecordLatency("history_insert", time.Since(start).Seconds())
	return nil
}
