package models

import "time"

// Signal is the direction a strategy (or the consensus) votes for.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// StrategyKey identifies a registered strategy. Dispatch is by typed key,
// resolved once at registry construction, never by reflective name lookup.
type StrategyKey string

const (
	StrategyCrossover StrategyKey = "crossover"
	StrategyMACD      StrategyKey = "macd"
	StrategyRSI       StrategyKey = "rsi"
	StrategyBollinger StrategyKey = "bollinger"
	StrategyIchimoku  StrategyKey = "ichimoku"
)

// DefaultStrategyKeys returns the built-in strategies in their canonical
// execution order. The order matters: analysis runs strategies sequentially
// so identical inputs always produce identical vote tallies.
func DefaultStrategyKeys() []StrategyKey {
	return []StrategyKey{
		StrategyCrossover,
		StrategyMACD,
		StrategyRSI,
		StrategyBollinger,
		StrategyIchimoku,
	}
}

// StrategyConfig holds one registry entry. Entries are created at engine
// initialization and mutated only through explicit reconfiguration.
type StrategyConfig struct {
	Key        StrategyKey        `json:"key"`
	Enabled    bool               `json:"enabled"`
	Weight     float64            `json:"weight"`
	Params     map[string]float64 `json:"params"`
	Timeframes []string           `json:"timeframes,omitempty"` // empty = applicable to all
}

// StrategyPatch is a partial update to a StrategyConfig. Nil fields keep
// the current value.
type StrategyPatch struct {
	Enabled    *bool
	Weight     *float64
	Params     map[string]float64
	Timeframes []string
}

// SignalVote is one strategy's opinion within a single analysis.
// Ephemeral: produced and consumed inside one AnalyzeAsset call.
type SignalVote struct {
	Strategy   StrategyKey `json:"strategy"`
	Signal     Signal      `json:"signal"`
	Confidence float64     `json:"confidence"`
	Weight     float64     `json:"weight"`
}

// Recommendation is the engine's output record. Callers always receive a
// well-formed Recommendation: failed analyses come back degraded
// (hold, confidence 0, Error set) instead of raising.
//
// StopLoss and TakeProfit are nil exactly when Signal is hold.
// RiskReward is nil unless both levels are set and the stop distance is
// non-zero.
type Recommendation struct {
	ID            string       `json:"id"`
	Asset         string       `json:"asset"`
	Timeframe     string       `json:"timeframe"`
	CurrentPrice  float64      `json:"current_price"`
	DegradedPrice bool         `json:"degraded_price,omitempty"`
	Signal        Signal       `json:"signal"`
	Confidence    float64      `json:"confidence"`
	HasConsensus  bool         `json:"has_consensus"`
	NoConsensus   bool         `json:"no_consensus"`
	StopLoss      *float64     `json:"stop_loss"`
	TakeProfit    *float64     `json:"take_profit"`
	RiskReward    *float64     `json:"risk_reward"`
	Timestamp     time.Time    `json:"timestamp"`
	Signals       []SignalVote `json:"signals"`
	BuySignals    int          `json:"buy_signals"`
	SellSignals   int          `json:"sell_signals"`
	HoldSignals   int          `json:"hold_signals"`
	TotalSignals  int          `json:"total_signals"`
	Error         string       `json:"error,omitempty"`
}
