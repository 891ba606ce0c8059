package models

// Request payloads for the engine HTTP endpoints.

type AnalyzeRequest struct {
	Asset      string   `json:"asset" validate:"required"`
	Timeframe  string   `json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Strategies []string `json:"strategies" validate:"omitempty,dive,oneof=crossover macd rsi bollinger ichimoku"`
}

type WatchlistAddRequest struct {
	Asset string `json:"asset" validate:"required"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// StrategyPatchRequest reconfigures one registry entry. Nil fields are left
// untouched.
type StrategyPatchRequest struct {
	Enabled    *bool              `json:"enabled"`
	Weight     *float64           `json:"weight" validate:"omitempty,gte=0,lte=1"`
	Params     map[string]float64 `json:"params"`
	Timeframes []string           `json:"timeframes" validate:"omitempty,dive,oneof=1m 5m 15m 1h 4h 1d"`
}
