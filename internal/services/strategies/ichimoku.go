package strategies

import (
	"context"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/internal/services/indicators"
)

// Ichimoku votes on the price position relative to the cloud. Buy when the
// last close sits above the cloud and the conversion line leads the base
// line, sell on the mirrored setup, hold inside the cloud or on mixed
// lines. Confidence grows with the distance between price and the nearest
// cloud edge.
type Ichimoku struct{}

func NewIchimoku() *Ichimoku { return &Ichimoku{} }

func (s *Ichimoku) Key() models.StrategyKey { return models.StrategyIchimoku }

func (s *Ichimoku) Evaluate(_ context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	tenkanP := intParamOr(params, "tenkan", 9)
	kijunP := intParamOr(params, "kijun", 26)
	senkouBP := intParamOr(params, "senkou_b", 52)
	disp := intParamOr(params, "displacement", 26)

	closes := data.Close
	need := senkouBP + disp
	if kijunP+disp > need {
		need = kijunP + disp
	}
	if len(closes) < need {
		return service.Verdict{}, errInsufficientHistory(s.Key(), len(closes), need)
	}

	// Close-only feeds still get a vote: the midpoints then degrade to
	// rolling close extremes.
	highs, lows := data.High, data.Low
	if len(highs) < need || len(lows) < need {
		highs, lows = closes, closes
	}

	end := len(highs) - 1
	tenkan := indicators.Midpoint(highs, lows, tenkanP)
	kijun := indicators.Midpoint(highs, lows, kijunP)
	senkouA := (indicators.MidpointAt(highs, lows, tenkanP, end-disp) +
		indicators.MidpointAt(highs, lows, kijunP, end-disp)) / 2
	senkouB := indicators.MidpointAt(highs, lows, senkouBP, end-disp)

	cloudTop, cloudBottom := senkouA, senkouB
	if cloudBottom > cloudTop {
		cloudTop, cloudBottom = cloudBottom, cloudTop
	}
	if cloudTop <= 0 {
		return hold(), nil
	}

	price := closes[len(closes)-1]
	switch {
	case price > cloudTop && tenkan > kijun:
		return service.Verdict{
			Signal:     models.SignalBuy,
			Confidence: confidence((price - cloudTop) / cloudTop),
		}, nil
	case price < cloudBottom && tenkan < kijun && cloudBottom > 0:
		return service.Verdict{
			Signal:     models.SignalSell,
			Confidence: confidence((cloudBottom - price) / cloudBottom),
		}, nil
	default:
		return hold(), nil
	}
}
