package strategies

import (
	"fmt"
	"sync"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/domain/service"
)

// DefaultWeight is the vote weight every built-in strategy starts with.
// Five strategies at 0.2 sum to a full vote.
const DefaultWeight = 0.2

// DefaultConfigs returns the built-in strategy set in canonical order, each
// enabled and carrying its standard tuning parameters.
func DefaultConfigs() []models.StrategyConfig {
	return []models.StrategyConfig{
		{
			Key:     models.StrategyCrossover,
			Enabled: true,
			Weight:  DefaultWeight,
			Params:  map[string]float64{"short_window": 50, "long_window": 200},
		},
		{
			Key:     models.StrategyMACD,
			Enabled: true,
			Weight:  DefaultWeight,
			Params:  map[string]float64{"fast": 12, "slow": 26, "signal": 9},
		},
		{
			Key:     models.StrategyRSI,
			Enabled: true,
			Weight:  DefaultWeight,
			Params:  map[string]float64{"period": 14, "oversold": 30, "overbought": 70},
		},
		{
			Key:     models.StrategyBollinger,
			Enabled: true,
			Weight:  DefaultWeight,
			Params:  map[string]float64{"period": 20, "std_dev": 2.0},
		},
		{
			Key:     models.StrategyIchimoku,
			Enabled: true,
			Weight:  DefaultWeight,
			Params:  map[string]float64{"tenkan": 9, "kijun": 26, "senkou_b": 52, "displacement": 26},
		},
	}
}

// TypedRegistry maps strategy keys to implementations and their live
// configuration. Dispatch is resolved once at registration; lookups never
// reflect. Reads hand out snapshots so callers can tally votes without
// holding the lock.
type TypedRegistry struct {
	mu      sync.RWMutex
	entries map[models.StrategyKey]*registryEntry
	order   []models.StrategyKey
}

type registryEntry struct {
	impl service.Strategy
	cfg  models.StrategyConfig
}

var _ service.Registry = (*TypedRegistry)(nil)

// NewRegistry builds a registry pre-loaded with the five built-in
// strategies.
func NewRegistry() *TypedRegistry {
	r := &TypedRegistry{entries: make(map[models.StrategyKey]*registryEntry)}
	for _, cfg := range DefaultConfigs() {
		// Built-in configs are valid by construction.
		_ = r.Register(builtin(cfg.Key), cfg)
	}
	return r
}

func builtin(key models.StrategyKey) service.Strategy {
	switch key {
	case models.StrategyCrossover:
		return NewCrossover()
	case models.StrategyMACD:
		return NewMACD()
	case models.StrategyRSI:
		return NewRSI()
	case models.StrategyBollinger:
		return NewBollinger()
	case models.StrategyIchimoku:
		return NewIchimoku()
	}
	return nil
}

// Register adds a strategy under cfg.Key, replacing any previous entry for
// the same key while keeping its registration order.
func (r *TypedRegistry) Register(impl service.Strategy, cfg models.StrategyConfig) error {
	if impl == nil || cfg.Key == "" {
		return fmt.Errorf("register strategy: %w", models.ErrInvalidInput)
	}
	if impl.Key() != cfg.Key {
		return fmt.Errorf("register strategy: key %q does not match implementation %q: %w",
			cfg.Key, impl.Key(), models.ErrInvalidInput)
	}
	if cfg.Weight < 0 || cfg.Weight > 1 {
		return fmt.Errorf("register strategy %s: weight %.3f out of [0,1]: %w",
			cfg.Key, cfg.Weight, models.ErrInvalidInput)
	}
	cfg.Params = copyParams(cfg.Params)

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[cfg.Key]; ok {
		prev.impl = impl
		prev.cfg = cfg
		return nil
	}
	r.entries[cfg.Key] = &registryEntry{impl: impl, cfg: cfg}
	r.order = append(r.order, cfg.Key)
	return nil
}

// Get returns the implementation and a config snapshot for one key.
func (r *TypedRegistry) Get(key models.StrategyKey) (service.Strategy, models.StrategyConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, models.StrategyConfig{}, false
	}
	return e.impl, snapshot(e.cfg), true
}

// Config returns a config snapshot for one key.
func (r *TypedRegistry) Config(key models.StrategyKey) (models.StrategyConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return models.StrategyConfig{}, false
	}
	return snapshot(e.cfg), true
}

// Keys returns every registered key in registration order.
func (r *TypedRegistry) Keys() []models.StrategyKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StrategyKey, len(r.order))
	copy(out, r.order)
	return out
}

// Enabled returns the enabled keys in registration order.
func (r *TypedRegistry) Enabled() []models.StrategyKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StrategyKey, 0, len(r.order))
	for _, key := range r.order {
		if r.entries[key].cfg.Enabled {
			out = append(out, key)
		}
	}
	return out
}

// Configs returns snapshots of every registered config in registration
// order.
func (r *TypedRegistry) Configs() []models.StrategyConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StrategyConfig, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, snapshot(r.entries[key].cfg))
	}
	return out
}

// Configure applies a partial update to one strategy's config and returns
// the resulting snapshot.
func (r *TypedRegistry) Configure(key models.StrategyKey, patch models.StrategyPatch) (models.StrategyConfig, error) {
	if patch.Weight != nil && (*patch.Weight < 0 || *patch.Weight > 1) {
		return models.StrategyConfig{}, fmt.Errorf("configure strategy %s: weight %.3f out of [0,1]: %w",
			key, *patch.Weight, models.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return models.StrategyConfig{}, fmt.Errorf("configure strategy %s: %w", key, models.ErrStrategyNotFound)
	}
	if patch.Enabled != nil {
		e.cfg.Enabled = *patch.Enabled
	}
	if patch.Weight != nil {
		e.cfg.Weight = *patch.Weight
	}
	if patch.Params != nil {
		e.cfg.Params = copyParams(patch.Params)
	}
	if patch.Timeframes != nil {
		e.cfg.Timeframes = append([]string(nil), patch.Timeframes...)
	}
	return snapshot(e.cfg), nil
}

func snapshot(cfg models.StrategyConfig) models.StrategyConfig {
	cfg.Params = copyParams(cfg.Params)
	cfg.Timeframes = append([]string(nil), cfg.Timeframes...)
	return cfg
}

func copyParams(params map[string]float64) map[string]float64 {
	if params == nil {
		return nil
	}
	out := make(map[string]float64, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
