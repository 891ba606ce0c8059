package usecase

import "TradeCouncil/internal/domain/models"

// RiskParams are the derived trade levels for one Recommendation. All
// pointers are nil on hold; RiskReward is nil whenever the stop distance
// collapses to zero.
type RiskParams struct {
	StopLoss   *float64
	TakeProfit *float64
	RiskReward *float64
}

// RiskCalculator derives stop-loss and take-profit levels from consensus
// confidence. Higher confidence tightens the stop and stretches the target:
// the stop percentage scales with (1.5 - confidence), the target percentage
// with confidence * 1.5, both on configurable base percentages.
type RiskCalculator struct {
	baseStopLossPct   float64
	baseTakeProfitPct float64
}

func NewRiskCalculator(baseStopLossPct, baseTakeProfitPct float64) *RiskCalculator {
	if baseStopLossPct <= 0 {
		baseStopLossPct = 0.02
	}
	if baseTakeProfitPct <= 0 {
		baseTakeProfitPct = 0.05
	}
	return &RiskCalculator{baseStopLossPct: baseStopLossPct, baseTakeProfitPct: baseTakeProfitPct}
}

// Calculate derives the levels for one signal at the given price and
// confidence.
func (r *RiskCalculator) Calculate(signal models.Signal, price, confidence float64) RiskParams {
	if signal == models.SignalHold {
		return RiskParams{}
	}

	slPct := r.baseStopLossPct * (1.5 - confidence)
	tpPct := r.baseTakeProfitPct * confidence * 1.5

	var stopLoss, takeProfit float64
	switch signal {
	case models.SignalBuy:
		stopLoss = price * (1 - slPct)
		takeProfit = price * (1 + tpPct)
	case models.SignalSell:
		stopLoss = price * (1 + slPct)
		takeProfit = price * (1 - tpPct)
	}

	out := RiskParams{StopLoss: &stopLoss, TakeProfit: &takeProfit}

	risk := abs(price - stopLoss)
	if risk == 0 {
		return out
	}
	reward := abs(takeProfit-price) / risk
	out.RiskReward = &reward
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
