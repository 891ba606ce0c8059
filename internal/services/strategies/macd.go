package strategies

import (
	"context"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/services/indicators"
)

// MACD votes on the position of the MACD line relative to its signal line.
// A positive histogram is bullish, a negative one bearish. Confidence grows
// with the histogram magnitude relative to price; a histogram worth one
// percent of price saturates the band.
type MACD struct{}

func NewMACD() *MACD { return &MACD{} }

func (s *MACD) Key() models.StrategyKey { return models.StrategyMACD }

func (s *MACD) Evaluate(_ context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	fast := intParamOr(params, "fast", 12)
	slow := intParamOr(params, "slow", 26)
	signal := intParamOr(params, "signal", 9)
	if fast >= slow {
		fast, slow = slow, fast
	}

	closes := data.Close
	need := slow + signal
	if len(closes) < need {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	_, _, hist := indicators.MACD(closes, fast, slow, signal)
	if hist == nil {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	last := hist[len(hist)-1]
	price := closes[len(closes)-1]
	if price <= 0 {
		return hold(), nil
	}
	conf := confidence(last / price * 100)

	switch {
	case last > 0:
		return service.Verdict{Signal: models.SignalBuy, Confidence: conf}, nil
	case last < 0:
		return service.Verdict{Signal: models.SignalSell, Confidence: conf}, nil
	default:
		return hold(), nil
	}
}
