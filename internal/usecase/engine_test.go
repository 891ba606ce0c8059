package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/services/strategies"
	"TradeCouncil/pkg/logger"
)

type engineFixture struct {
	engine    *DecisionEngine
	registry  *strategies.TypedRegistry
	provider  *providerMock
	publisher *publisherMock
	store     *recStoreFake
	metrics   *metricsStub
}

func newEngineFixture(t *testing.T, votes ...*scriptedStrategy) (*engineFixture, []models.StrategyKey) {
	t.Helper()
	reg, keys := scriptedRegistry(t, 0.2, votes...)
	f := &engineFixture{
		registry:  reg,
		provider:  new(providerMock),
		publisher: new(publisherMock),
		store:     newRecStoreFake(),
		metrics:   newMetricsStub(),
	}
	log := logger.Nop()
	f.engine = NewDecisionEngine(
		reg,
		NewConsensusAggregator(reg, f.metrics, log),
		NewRiskCalculator(0.02, 0.05),
		NewWatchlist(nil, log, nil),
		f.provider,
		f.store,
		f.publisher,
		f.metrics,
		log,
		EngineOptions{},
	)
	return f, keys
}

func unanimousBuyVotes() []*scriptedStrategy {
	return []*scriptedStrategy{
		{key: "s1", signal: models.SignalBuy, confidence: 0.9},
		{key: "s2", signal: models.SignalBuy, confidence: 0.9},
		{key: "s3", signal: models.SignalBuy, confidence: 0.9},
		{key: "s4", signal: models.SignalBuy, confidence: 0.9},
		{key: "s5", signal: models.SignalBuy, confidence: 0.9},
	}
}

func TestEngineRequiresInitialization(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Strategies: keys})
	assertion.Equal(models.SignalHold, rec.Signal)
	assertion.Equal(0.0, rec.Confidence)
	assertion.Contains(rec.Error, "not initialized")
	assertion.True(rec.DegradedPrice)
	assertion.True(rec.NoConsensus)
	assertion.NotEmpty(rec.ID)

	// The degraded pre-init result is not retained.
	assertion.Empty(f.store.All(ctx))

	_, err := f.engine.AddToWatchlist(ctx, "BTCUSDT")
	assertion.ErrorIs(err, models.ErrNotInitialized)
	_, err = f.engine.RemoveFromWatchlist(ctx, "BTCUSDT")
	assertion.ErrorIs(err, models.ErrNotInitialized)
	_, err = f.engine.GetWatchlist(ctx)
	assertion.ErrorIs(err, models.ErrNotInitialized)
	_, err = f.engine.ConfigureStrategy("s1", models.StrategyPatch{})
	assertion.ErrorIs(err, models.ErrNotInitialized)
}

func TestEngineUnanimousBuyEndToEnd(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))

	f.provider.On("GetMarketData", "BTCUSDT", mock.Anything).
		Return(&models.MarketData{Asset: "BTCUSDT", Timeframe: "1h", Price: 100}, nil)
	f.publisher.On("Publish", mock.Anything).Return(nil)

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Timeframe: "1h", Strategies: keys})

	assertion.Equal(models.SignalBuy, rec.Signal)
	assertion.InDelta(0.9, rec.Confidence, 1e-9)
	assertion.True(rec.HasConsensus)
	assertion.False(rec.NoConsensus)
	assertion.Equal(100.0, rec.CurrentPrice)
	assertion.False(rec.DegradedPrice)
	assertion.Equal(5, rec.BuySignals)
	assertion.Equal(5, rec.TotalSignals)
	assertion.Len(rec.Signals, 5)
	assertion.Empty(rec.Error)
	assertion.False(rec.Timestamp.IsZero())

	// Confidence 0.9 at price 100 with the 2%/5% bases.
	assertion.InDelta(98.80, *rec.StopLoss, 1e-9)
	assertion.InDelta(106.75, *rec.TakeProfit, 1e-9)
	assertion.InDelta(5.625, *rec.RiskReward, 1e-9)

	stored, ok := f.engine.LastRecommendation(ctx, "BTCUSDT")
	assertion.True(ok)
	assertion.Equal(rec.ID, stored.ID)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)

	// A second run issues a fresh ID.
	rec2 := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Timeframe: "1h", Strategies: keys})
	assertion.NotEqual(rec.ID, rec2.ID)
}

func TestEngineFetchFailureDegrades(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))

	f.provider.On("GetMarketData", "BTCUSDT", mock.Anything).
		Return(nil, errors.New("exchange 502"))

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Strategies: keys})

	assertion.Equal(models.SignalHold, rec.Signal)
	assertion.Equal(0.0, rec.Confidence)
	assertion.False(rec.HasConsensus)
	assertion.True(rec.NoConsensus)
	assertion.Contains(rec.Error, "market data unavailable")
	assertion.Contains(rec.Error, "exchange 502")
	assertion.True(rec.DegradedPrice)
	assertion.Equal(100.0, rec.CurrentPrice)
	assertion.Nil(rec.StopLoss)
	assertion.Nil(rec.TakeProfit)
	assertion.Nil(rec.RiskReward)

	// Degraded outcomes are retained for inspection but never published.
	_, ok := f.engine.LastRecommendation(ctx, "BTCUSDT")
	assertion.True(ok)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything)
	assertion.Equal(1, f.metrics.errorCount("market_data"))
}

func TestEngineEmptyAssetDegrades(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "   ", Strategies: keys})

	assertion.Equal(models.SignalHold, rec.Signal)
	assertion.Contains(rec.Error, "invalid input")
	assertion.Empty(f.store.All(ctx))
}

func TestEnginePriceSelection(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))
	f.publisher.On("Publish", mock.Anything).Return(nil)

	// An explicit quote wins over the close series.
	f.provider.On("GetMarketData", "QUOTED", mock.Anything).
		Return(&models.MarketData{Asset: "QUOTED", Timeframe: "1h", Price: 42, Close: []float64{1, 2, 3}}, nil)
	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "QUOTED", Strategies: keys})
	assertion.Equal(42.0, rec.CurrentPrice)
	assertion.False(rec.DegradedPrice)

	// Without a quote the last close stands in.
	f.provider.On("GetMarketData", "CLOSED", mock.Anything).
		Return(&models.MarketData{Asset: "CLOSED", Timeframe: "1h", Close: []float64{10, 20, 55}}, nil)
	rec = f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "CLOSED", Strategies: keys})
	assertion.Equal(55.0, rec.CurrentPrice)
	assertion.False(rec.DegradedPrice)

	// Neither quote nor closes: fallback price, flagged degraded, while
	// the vote itself still counts.
	f.provider.On("GetMarketData", "BARE", mock.Anything).
		Return(&models.MarketData{Asset: "BARE", Timeframe: "1h"}, nil)
	rec = f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BARE", Strategies: keys})
	assertion.Equal(100.0, rec.CurrentPrice)
	assertion.True(rec.DegradedPrice)
	assertion.Equal(models.SignalBuy, rec.Signal)
}

func TestEnginePublishFailureAbsorbed(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))

	f.provider.On("GetMarketData", "BTCUSDT", mock.Anything).
		Return(&models.MarketData{Asset: "BTCUSDT", Timeframe: "1h", Price: 100}, nil)
	f.publisher.On("Publish", mock.Anything).Return(errors.New("broker down"))

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Strategies: keys})

	assertion.Equal(models.SignalBuy, rec.Signal)
	assertion.Empty(rec.Error)
	assertion.Equal(1, f.metrics.errorCount("publish"))
}

func TestEngineDefaultsToEnabledStrategies(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	// No explicit key list: the sweep covers every enabled strategy. The
	// five built-ins abstain on a bare snapshot (not enough history), the
	// scripted ones carry the vote.
	f, _ := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))

	f.provider.On("GetMarketData", "BTCUSDT", mock.Anything).
		Return(&models.MarketData{Asset: "BTCUSDT", Timeframe: "1h", Price: 100}, nil)
	f.publisher.On("Publish", mock.Anything).Return(nil)

	rec := f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT"})

	assertion.Equal(models.SignalBuy, rec.Signal)
	assertion.InDelta(0.9, rec.Confidence, 1e-9)
	assertion.Equal(5, rec.TotalSignals)
}

func TestEngineWatchlistOperations(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t)
	assertion.NoError(f.engine.Initialize(ctx))

	added, err := f.engine.AddToWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)
	assertion.True(added)

	added, err = f.engine.AddToWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)
	assertion.False(added)

	_, err = f.engine.AddToWatchlist(ctx, "")
	assertion.ErrorIs(err, models.ErrInvalidInput)

	assets, err := f.engine.GetWatchlist(ctx)
	assertion.NoError(err)
	assertion.Equal([]string{"BTCUSDT"}, assets)

	removed, err := f.engine.RemoveFromWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)
	assertion.True(removed)

	removed, err = f.engine.RemoveFromWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)
	assertion.False(removed)
}

func TestEngineStrategyConfiguration(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t)
	assertion.NoError(f.engine.Initialize(ctx))

	configs := f.engine.StrategyConfigs()
	assertion.Len(configs, 5)
	assertion.Equal(models.StrategyCrossover, configs[0].Key)

	weight := 0.5
	cfg, err := f.engine.ConfigureStrategy(models.StrategyRSI, models.StrategyPatch{Weight: &weight})
	assertion.NoError(err)
	assertion.Equal(0.5, cfg.Weight)

	_, err = f.engine.ConfigureStrategy("ghost", models.StrategyPatch{})
	assertion.ErrorIs(err, models.ErrStrategyNotFound)
}

func TestEngineRecommendationAccessors(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, keys := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))
	f.publisher.On("Publish", mock.Anything).Return(nil)
	f.provider.On("GetMarketData", mock.Anything, mock.Anything).
		Return(&models.MarketData{Timeframe: "1h", Price: 10}, nil)

	f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "BTCUSDT", Strategies: keys})
	f.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: "ETHUSDT", Strategies: keys})

	all := f.engine.Recommendations(ctx)
	assertion.Len(all, 2)

	_, ok := f.engine.LastRecommendation(ctx, "ETHUSDT")
	assertion.True(ok)
	_, ok = f.engine.LastRecommendation(ctx, "SOLUSDT")
	assertion.False(ok)
}
