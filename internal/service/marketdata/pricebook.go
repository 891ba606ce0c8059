package marketdata

import (
	"time"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/service/cache"
)

// PriceBook holds the most recent live trade price per asset. The tick
// pipeline writes it, the REST client reads it so analyses can use a
// fresher price than the last closed candle.
type PriceBook struct {
	store *cache.TTLCache
	ttl   time.Duration
}

// NewPriceBook builds a price book whose entries go stale after ttl.
func NewPriceBook(ttl time.Duration) *PriceBook {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PriceBook{store: cache.NewTTLCache(), ttl: ttl}
}

// Update records the tick price for its asset.
func (p *PriceBook) Update(tick *models.Tick) {
	if tick == nil || tick.Asset == "" || tick.Price <= 0 {
		return
	}
	p.store.Set(tick.Asset, tick.Price, p.ttl)
}

// Last returns the live price for asset if one is still fresh.
func (p *PriceBook) Last(asset string) (float64, bool) {
	v, ok := p.store.Get(asset)
	if !ok {
		return 0, false
	}
	price, ok := v.(float64)
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}
