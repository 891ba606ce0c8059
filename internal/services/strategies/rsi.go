package strategies

import (
	"context"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/services/indicators"
)

// RSI votes against exhaustion: buy when the index drops under the oversold
// threshold, sell when it climbs over the overbought one. Confidence grows
// with how deep the index sits beyond the threshold.
type RSI struct{}

func NewRSI() *RSI { return &RSI{} }

func (s *RSI) Key() models.StrategyKey { return models.StrategyRSI }

func (s *RSI) Evaluate(_ context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	period := intParamOr(params, "period", 14)
	oversold := paramOr(params, "oversold", 30)
	overbought := paramOr(params, "overbought", 70)

	closes := data.Close
	need := period + 1
	if len(closes) < need {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	rsi := indicators.RSI(closes, period)

	switch {
	case rsi < oversold && oversold > 0:
		return service.Verdict{
			Signal:     models.SignalBuy,
			Confidence: confidence((oversold - rsi) / oversold),
		}, nil
	case rsi > overbought && overbought < 100:
		return service.Verdict{
			Signal:     models.SignalSell,
			Confidence: confidence((rsi - overbought) / (100 - overbought)),
		}, nil
	default:
		return hold(), nil
	}
}
