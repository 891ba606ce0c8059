package cache

import "time"

// BytesCache stores raw response payloads with a TTL. The market-data
// client uses it to keep candle fetches off the exchange rate limits.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
