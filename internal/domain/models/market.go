package models

import "time"

// MarketData is one asset/timeframe snapshot as returned by the market-data
// provider. Price is the explicit last-trade price when the feed had one;
// zero means "not reported" and the last close is used instead.
type MarketData struct {
	Asset     string    `json:"asset"`
	Timeframe string    `json:"timeframe"`
	Price     float64   `json:"price,omitempty"`
	Open      []float64 `json:"open,omitempty"`
	High      []float64 `json:"high,omitempty"`
	Low       []float64 `json:"low,omitempty"`
	Close     []float64 `json:"close,omitempty"`
	Volume    []float64 `json:"volume,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// LastClose returns the most recent close and whether one exists.
func (m *MarketData) LastClose() (float64, bool) {
	if m == nil || len(m.Close) == 0 {
		return 0, false
	}
	return m.Close[len(m.Close)-1], true
}

// Bars returns the number of candles in the snapshot.
func (m *MarketData) Bars() int {
	if m == nil {
		return 0
	}
	return len(m.Close)
}

// Tick is a single live trade event from the exchange stream.
type Tick struct {
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}
