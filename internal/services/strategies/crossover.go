package strategies

import (
	"context"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/services/indicators"
)

// Crossover votes on the relation between a short and a long simple moving
// average. Buy when the short average rides above the long one and the last
// close still rises, sell on the mirrored setup, hold otherwise. Confidence
// grows with the relative spread between the two averages.
type Crossover struct{}

func NewCrossover() *Crossover { return &Crossover{} }

func (s *Crossover) Key() models.StrategyKey { return models.StrategyCrossover }

func (s *Crossover) Evaluate(_ context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	short := intParamOr(params, "short_window", 50)
	long := intParamOr(params, "long_window", 200)
	if short >= long {
		short, long = long, short
	}

	closes := data.Close
	need := long
	if need < 2 {
		need = 2
	}
	if len(closes) < need {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	shortMA := indicators.SMA(closes, short)
	longMA := indicators.SMA(closes, long)
	if longMA == 0 {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	cur := closes[len(closes)-1]
	prev := closes[len(closes)-2]
	conf := confidence((shortMA - longMA) / longMA)

	switch {
	case shortMA > longMA && cur > prev:
		return service.Verdict{Signal: models.SignalBuy, Confidence: conf}, nil
	case shortMA < longMA && cur < prev:
		return service.Verdict{Signal: models.SignalSell, Confidence: conf}, nil
	default:
		return hold(), nil
	}
}
