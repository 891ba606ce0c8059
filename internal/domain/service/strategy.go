package service

import (
	"context"

	"TradeCouncil/internal/domain/models"
)

// Verdict is one strategy's opinion on an asset.
type Verdict struct {
	Signal     models.Signal
	Confidence float64
}

// Strategy turns a market snapshot into a trade Verdict. Evaluate returns
// an error when the snapshot cannot support the computation (too little
// history, bad params); the caller treats that strategy as abstaining.
type Strategy interface {
	Key() models.StrategyKey
	Evaluate(ctx context.Context, data *models.MarketData, params map[string]float64) (Verdict, error)
}

// Registry hands out the configured strategy set in a stable order.
type Registry interface {
	Get(key models.StrategyKey) (Strategy, models.StrategyConfig, bool)
	Enabled() []models.StrategyKey
	Keys() []models.StrategyKey
	Config(key models.StrategyKey) (models.StrategyConfig, bool)
	Configure(key models.StrategyKey, patch models.StrategyPatch) (models.StrategyConfig, error)
}
