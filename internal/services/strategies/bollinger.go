package strategies

import (
	"context"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/services/indicators"
)

// Bollinger is a band-reversion vote: buy when the last close touches or
// breaks the lower band, sell at the upper band, hold inside the channel.
// Confidence grows with the penetration depth relative to the band half
// width.
type Bollinger struct{}

func NewBollinger() *Bollinger { return &Bollinger{} }

func (s *Bollinger) Key() models.StrategyKey { return models.StrategyBollinger }

func (s *Bollinger) Evaluate(_ context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	period := intParamOr(params, "period", 20)
	numStdDev := paramOr(params, "std_dev", 2.0)

	closes := data.Close
	if len(closes) < period {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), period)
	}

	upper, middle, lower := indicators.Bollinger(closes, period, numStdDev)
	price := closes[len(closes)-1]
	halfWidth := middle - lower
	if halfWidth <= 0 {
		// Flat series, the bands collapse onto the average.
		return hold(), nil
	}

	switch {
	case price <= lower:
		return service.Verdict{
			Signal:     models.SignalBuy,
			Confidence: confidence((lower - price) / halfWidth),
		}, nil
	case price >= upper:
		return service.Verdict{
			Signal:     models.SignalSell,
			Confidence: confidence((price - upper) / halfWidth),
		}, nil
	default:
		return hold(), nil
	}
}
