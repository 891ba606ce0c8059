package repository

import (
	"context"

	"TradeCouncil/internal/domain/models"
)

// MarketDataProvider fetches one asset/timeframe snapshot. Implementations
// must respect the context deadline; a slow upstream fails the fetch, it
// never hangs the analysis.
type MarketDataProvider interface {
	GetMarketData(ctx context.Context, asset string, tf Timeframe) (*models.MarketData, error)
}

// TickStream is a live trade feed from an exchange.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// RecommendationStore keeps the most recent Recommendation per asset.
// Each analysis overwrites the previous entry; there is no deeper history
// at this layer.
type RecommendationStore interface {
	SetLast(ctx context.Context, rec *models.Recommendation) error
	GetLast(ctx context.Context, asset string) (*models.Recommendation, bool)
	All(ctx context.Context) []*models.Recommendation
}

// HistoryStore records every published Recommendation for later inspection.
type HistoryStore interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, rec *models.Recommendation) error
	Recent(ctx context.Context, asset string, limit int) ([]*models.Recommendation, error)
	Health(ctx context.Context) error
	Close() error
}

// RecommendationPublisher hands finished Recommendations to downstream
// consumers (automation loops, history ingestion).
type RecommendationPublisher interface {
	Publish(ctx context.Context, rec *models.Recommendation) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordAnalysis(asset string, signal string)
	RecordError(kind string)
	RecordLastPrice(asset string, price float64)
	RecordLatency(op string, seconds float64)
	RecordConfidence(asset string, confidence float64)
}
