package models

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. NotInitialized and InvalidInput are the only hard
// failures watchlist callers see; analysis absorbs everything into a
// degraded Recommendation.
var (
	ErrNotInitialized        = errors.New("engine not initialized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrStrategyNotFound      = errors.New("strategy not found")
	ErrHistoryDisabled       = errors.New("history store disabled")
)

// StrategyExecutionError wraps one strategy's failure during an analysis.
// It is logged and counted, never propagated: the strategy abstains.
type StrategyExecutionError struct {
	Strategy StrategyKey
	Err      error
}

func (e *StrategyExecutionError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyExecutionError) Unwrap() error { return e.Err }
