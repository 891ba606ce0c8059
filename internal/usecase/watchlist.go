package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/pkg/cache"
	"TradeCouncil/pkg/logger"
)

const watchlistCacheKey = "watchlist:assets"

// Watchlist is the ordered set of assets the engine keeps an eye on.
// Listing preserves insertion order, membership is unique, and every
// mutation goes through the single internal mutex. A snapshot is mirrored
// to the cache on each change so the set survives a restart; the mirror is
// best effort and never fails a mutation.
type Watchlist struct {
	mu    sync.Mutex
	order []string
	set   map[string]struct{}

	cache cache.Service
	log   *logger.Logger
}

// NewWatchlist builds a watchlist pre-seeded with the given assets.
// Invalid seeds are dropped, duplicates collapse to their first position.
func NewWatchlist(c cache.Service, log *logger.Logger, seed []string) *Watchlist {
	w := &Watchlist{set: make(map[string]struct{}), cache: c, log: log}
	for _, asset := range seed {
		asset = strings.TrimSpace(asset)
		if asset == "" {
			continue
		}
		if _, ok := w.set[asset]; ok {
			continue
		}
		w.set[asset] = struct{}{}
		w.order = append(w.order, asset)
	}
	return w
}

// Restore merges the cached snapshot in front of the seeded assets.
// Missing cache or a stale snapshot is not an error.
func (w *Watchlist) Restore(ctx context.Context) {
	if w.cache == nil {
		return
	}
	var raw string
	if err := w.cache.Get(ctx, watchlistCacheKey, &raw); err != nil {
		if err != cache.ErrCacheMiss {
			w.log.Warn("watchlist snapshot read failed", logger.Error(err))
		}
		return
	}
	var snapshot []string
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		w.log.Warn("watchlist snapshot corrupt, ignoring", logger.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	merged := make([]string, 0, len(snapshot)+len(w.order))
	set := make(map[string]struct{}, len(snapshot)+len(w.order))
	for _, asset := range append(snapshot, w.order...) {
		if asset == "" {
			continue
		}
		if _, ok := set[asset]; ok {
			continue
		}
		set[asset] = struct{}{}
		merged = append(merged, asset)
	}
	w.order = merged
	w.set = set
}

// Add appends an asset. It reports true when the asset is new, false when
// it was already watched.
func (w *Watchlist) Add(ctx context.Context, asset string) (bool, error) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return false, fmt.Errorf("watchlist add: empty asset: %w", models.ErrInvalidInput)
	}

	w.mu.Lock()
	if _, ok := w.set[asset]; ok {
		w.mu.Unlock()
		return false, nil
	}
	w.set[asset] = struct{}{}
	w.order = append(w.order, asset)
	snapshot := make([]string, len(w.order))
	copy(snapshot, w.order)
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	return true, nil
}

// Remove drops an asset. It reports false when the asset was not watched.
func (w *Watchlist) Remove(ctx context.Context, asset string) bool {
	asset = strings.TrimSpace(asset)

	w.mu.Lock()
	if _, ok := w.set[asset]; !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.set, asset)
	for i, a := range w.order {
		if a == asset {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	snapshot := make([]string, len(w.order))
	copy(snapshot, w.order)
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	return true
}

// List returns the watched assets in insertion order.
func (w *Watchlist) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// Contains reports membership without touching the order.
func (w *Watchlist) Contains(asset string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.set[strings.TrimSpace(asset)]
	return ok
}

// Len returns the number of watched assets.
func (w *Watchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *Watchlist) persist(ctx context.Context, snapshot []string) {
	if w.cache == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := w.cache.Set(ctx, watchlistCacheKey, string(raw), 0); err != nil {
		w.log.Warn("watchlist snapshot write failed", logger.Error(err))
	}
}
