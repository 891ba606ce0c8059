// Package strategies holds the built-in trade strategies and the typed
// registry that owns their configuration. Every strategy here is stateless:
// it reads one market snapshot and answers with a verdict, so a single
// instance is safe to share across concurrent analyses.
package strategies

import (
	"fmt"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
)

const (
	confidenceFloor = 0.5
	confidenceCap   = 0.95
	confidenceBase  = 0.7
)

// confidence maps a dimensionless signal strength onto the working band.
// Zero strength lands on the base, strong readings saturate at the cap.
func confidence(strength float64) float64 {
	if strength < 0 {
		strength = -strength
	}
	c := confidenceBase + strength
	if c > confidenceCap {
		return confidenceCap
	}
	if c < confidenceFloor {
		return confidenceFloor
	}
	return c
}

// paramOr reads a tuning parameter with a fallback for absent keys.
func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

// intParamOr reads a window-size parameter, rejecting non-positive values.
func intParamOr(params map[string]float64, key string, def int) int {
	v := int(paramOr(params, key, float64(def)))
	if v <= 0 {
		return def
	}
	return v
}

func errInsufficientHistory(key models.StrategyKey, have, need int) error {
	return fmt.Errorf("%s: %d bars of history, need %d", key, have, need)
}

func hold() service.Verdict {
	return service.Verdict{Signal: models.SignalHold, Confidence: confidenceFloor}
}

var (
	_ service.Strategy = (*Crossover)(nil)
	_ service.Strategy = (*MACD)(nil)
	_ service.Strategy = (*RSI)(nil)
	_ service.Strategy = (*Bollinger)(nil)
	_ service.Strategy = (*Ichimoku)(nil)
)
