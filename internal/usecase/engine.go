package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/pkg/logger"
)

// EngineOptions are the tunables of the decision engine.
type EngineOptions struct {
	// ConsensusThreshold is the weighted-confidence bar a side must clear.
	ConsensusThreshold float64
	// FallbackPrice stands in when neither an explicit price nor a usable
	// close is available.
	FallbackPrice float64
	// FetchTimeout bounds one market-data fetch.
	FetchTimeout time.Duration
}

func (o *EngineOptions) fillDefaults() {
	if o.ConsensusThreshold <= 0 {
		o.ConsensusThreshold = 0.7
	}
	if o.FallbackPrice <= 0 {
		o.FallbackPrice = 100
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
}

// AnalyzeParams select what one analysis runs on. An empty Strategies list
// means every enabled strategy in registry order.
type AnalyzeParams struct {
	Asset      string
	Timeframe  string
	Strategies []models.StrategyKey
}

// DecisionEngine orchestrates one full decision cycle: fetch market data,
// sweep the strategies, fold the votes, derive risk levels, retain and
// publish the result. AnalyzeAsset never returns an error: every failure
// mode degrades into a well-formed hold Recommendation with the cause in
// its Error field. Watchlist operations do fail hard on an uninitialized
// engine or invalid input.
type DecisionEngine struct {
	registry   service.Registry
	aggregator *ConsensusAggregator
	risk       *RiskCalculator
	watchlist  *Watchlist
	provider   drepo.MarketDataProvider
	lastStore  drepo.RecommendationStore
	publisher  drepo.RecommendationPublisher
	metrics    drepo.Metrics
	log        *logger.Logger

	opts        EngineOptions
	initialized atomic.Bool
}

func NewDecisionEngine(
	registry service.Registry,
	aggregator *ConsensusAggregator,
	risk *RiskCalculator,
	watchlist *Watchlist,
	provider drepo.MarketDataProvider,
	lastStore drepo.RecommendationStore,
	publisher drepo.RecommendationPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts EngineOptions,
) *DecisionEngine {
	opts.fillDefaults()
	return &DecisionEngine{
		registry:   registry,
		aggregator: aggregator,
		risk:       risk,
		watchlist:  watchlist,
		provider:   provider,
		lastStore:  lastStore,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		opts:       opts,
	}
}

// Initialize restores the watchlist snapshot and opens the engine for
// requests. Safe to call more than once.
func (e *DecisionEngine) Initialize(ctx context.Context) error {
	if e.initialized.Swap(true) {
		return nil
	}
	e.watchlist.Restore(ctx)
	e.log.Info("decision engine initialized",
		logger.Int("strategies", len(e.registry.Keys())),
		logger.Int("watchlist", e.watchlist.Len()))
	return nil
}

func (e *DecisionEngine) ensureInitialized() error {
	if !e.initialized.Load() {
		return models.ErrNotInitialized
	}
	return nil
}

// AnalyzeAsset runs one decision cycle and always hands back a
// Recommendation.
func (e *DecisionEngine) AnalyzeAsset(ctx context.Context, p AnalyzeParams) *models.Recommendation {
	started := time.Now()
	asset := strings.TrimSpace(p.Asset)
	tf := drepo.NormalizeTimeframe(p.Timeframe)

	if err := e.ensureInitialized(); err != nil {
		return e.degraded(asset, tf, err)
	}
	if asset == "" {
		return e.degraded(asset, tf, fmt.Errorf("empty asset: %w", models.ErrInvalidInput))
	}

	keys := p.Strategies
	if len(keys) == 0 {
		keys = e.registry.Enabled()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	data, err := e.provider.GetMarketData(fetchCtx, asset, tf)
	cancel()
	if err != nil {
		e.metrics.RecordError("market_data")
		e.log.Warn("market data fetch failed",
			logger.String("asset", asset),
			logger.String("timeframe", string(tf)),
			logger.Error(err))
		rec := e.degraded(asset, tf, fmt.Errorf("%v: %w", err, models.ErrMarketDataUnavailable))
		e.finish(ctx, rec, started, false)
		return rec
	}

	price, degradedPrice := currentPrice(data, e.opts.FallbackPrice)
	res := e.aggregator.Aggregate(ctx, data, keys, e.opts.ConsensusThreshold)
	levels := e.risk.Calculate(res.Signal, price, res.Confidence)

	rec := &models.Recommendation{
		ID:            uuid.NewString(),
		Asset:         asset,
		Timeframe:     string(tf),
		CurrentPrice:  price,
		DegradedPrice: degradedPrice,
		Signal:        res.Signal,
		Confidence:    res.Confidence,
		HasConsensus:  res.HasConsensus,
		NoConsensus:   res.NoConsensus,
		StopLoss:      levels.StopLoss,
		TakeProfit:    levels.TakeProfit,
		RiskReward:    levels.RiskReward,
		Timestamp:     time.Now().UTC(),
		Signals:       res.Votes,
		BuySignals:    res.BuySignals,
		SellSignals:   res.SellSignals,
		HoldSignals:   res.HoldSignals,
		TotalSignals:  len(res.Votes),
	}
	e.finish(ctx, rec, started, true)
	return rec
}

// finish retains the Recommendation, records metrics, and publishes
// non-degraded results downstream.
func (e *DecisionEngine) finish(ctx context.Context, rec *models.Recommendation, started time.Time, publish bool) {
	if rec.Asset != "" {
		if err := e.lastStore.SetLast(ctx, rec); err != nil {
			e.log.Warn("recommendation retain failed", logger.String("asset", rec.Asset), logger.Error(err))
		}
	}
	e.metrics.RecordAnalysis(rec.Asset, string(rec.Signal))
	e.metrics.RecordLastPrice(rec.Asset, rec.CurrentPrice)
	e.metrics.RecordConfidence(rec.Asset, rec.Confidence)
	e.metrics.RecordLatency("analyze_asset", time.Since(started).Seconds())

	if publish && e.publisher != nil {
		if err := e.publisher.Publish(ctx, rec); err != nil {
			e.metrics.RecordError("publish")
			e.log.Warn("recommendation publish failed", logger.String("asset", rec.Asset), logger.Error(err))
		}
	}
}

func (e *DecisionEngine) degraded(asset string, tf drepo.Timeframe, cause error) *models.Recommendation {
	return &models.Recommendation{
		ID:            uuid.NewString(),
		Asset:         asset,
		Timeframe:     string(tf),
		CurrentPrice:  e.opts.FallbackPrice,
		DegradedPrice: true,
		Signal:        models.SignalHold,
		Confidence:    0,
		HasConsensus:  false,
		NoConsensus:   true,
		Timestamp:     time.Now().UTC(),
		Signals:       []models.SignalVote{},
		Error:         cause.Error(),
	}
}

// currentPrice picks the working price: the explicit quote when positive,
// then the last usable close, then the fallback with the degraded flag
// raised.
func currentPrice(data *models.MarketData, fallback float64) (float64, bool) {
	if data.Price > 0 {
		return data.Price, false
	}
	if last, ok := data.LastClose(); ok && last > 0 {
		return last, false
	}
	return fallback, true
}

// AddToWatchlist starts watching an asset. True means newly added.
func (e *DecisionEngine) AddToWatchlist(ctx context.Context, asset string) (bool, error) {
	if err := e.ensureInitialized(); err != nil {
		return false, err
	}
	added, err := e.watchlist.Add(ctx, asset)
	if err != nil {
		return false, err
	}
	if added {
		e.log.Info("watchlist add", logger.String("asset", strings.TrimSpace(asset)))
	}
	return added, nil
}

// RemoveFromWatchlist stops watching an asset. False means it was not
// watched.
func (e *DecisionEngine) RemoveFromWatchlist(ctx context.Context, asset string) (bool, error) {
	if err := e.ensureInitialized(); err != nil {
		return false, err
	}
	removed := e.watchlist.Remove(ctx, asset)
	if removed {
		e.log.Info("watchlist remove", logger.String("asset", strings.TrimSpace(asset)))
	}
	return removed, nil
}

// GetWatchlist returns the watched assets in insertion order.
func (e *DecisionEngine) GetWatchlist(ctx context.Context) ([]string, error) {
	if err := e.ensureInitialized(); err != nil {
		return nil, err
	}
	return e.watchlist.List(), nil
}

// LastRecommendation returns the most recent Recommendation for one asset.
func (e *DecisionEngine) LastRecommendation(ctx context.Context, asset string) (*models.Recommendation, bool) {
	return e.lastStore.GetLast(ctx, strings.TrimSpace(asset))
}

// Recommendations returns the most recent Recommendation of every analyzed
// asset.
func (e *DecisionEngine) Recommendations(ctx context.Context) []*models.Recommendation {
	return e.lastStore.All(ctx)
}

// StrategyConfigs returns the live strategy configuration in registry
// order.
func (e *DecisionEngine) StrategyConfigs() []models.StrategyConfig {
	keys := e.registry.Keys()
	out := make([]models.StrategyConfig, 0, len(keys))
	for _, key := range keys {
		if cfg, ok := e.registry.Config(key); ok {
			out = append(out, cfg)
		}
	}
	return out
}

// ConfigureStrategy patches one strategy's configuration.
func (e *DecisionEngine) ConfigureStrategy(key models.StrategyKey, patch models.StrategyPatch) (models.StrategyConfig, error) {
	if err := e.ensureInitialized(); err != nil {
		return models.StrategyConfig{}, err
	}
	cfg, err := e.registry.Configure(key, patch)
	if err != nil {
		return models.StrategyConfig{}, err
	}
	e.log.Info("strategy reconfigured",
		logger.String("strategy", string(key)),
		logger.Bool("enabled", cfg.Enabled))
	return cfg, nil
}
