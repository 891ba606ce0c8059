package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/services/strategies"
	"TradeCouncil/pkg/logger"
)

func scriptedRegistry(t *testing.T, weight float64, votes ...*scriptedStrategy) (*strategies.TypedRegistry, []models.StrategyKey) {
	t.Helper()
	r := strategies.NewRegistry()
	keys := make([]models.StrategyKey, 0, len(votes))
	for _, v := range votes {
		err := r.Register(v, models.StrategyConfig{Key: v.key, Enabled: true, Weight: weight})
		assert.NoError(t, err)
		keys = append(keys, v.key)
	}
	return r, keys
}

func newAggregator(r *strategies.TypedRegistry, metrics *metricsStub) *ConsensusAggregator {
	return NewConsensusAggregator(r, metrics, logger.Nop())
}

func snapshot1h() *models.MarketData {
	return &models.MarketData{Asset: "BTCUSDT", Timeframe: "1h"}
}

func TestConsensusMixedVotesFallShortOfThreshold(t *testing.T) {
	assertion := assert.New(t)

	// Two buys at 0.9/0.8, one sell, two holds, all weight 0.2: the buy
	// side leads the count but its weighted confidence is only 0.34.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.8},
		&scriptedStrategy{key: "s3", signal: models.SignalSell, confidence: 0.6},
		&scriptedStrategy{key: "s4", signal: models.SignalHold, confidence: 0.5},
		&scriptedStrategy{key: "s5", signal: models.SignalHold, confidence: 0.5},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0.5, res.Confidence)
	assertion.False(res.HasConsensus)
	assertion.Equal(2, res.BuySignals)
	assertion.Equal(1, res.SellSignals)
	assertion.Equal(2, res.HoldSignals)
	assertion.Len(res.Votes, 5)
	// Real hold votes stand behind this hold.
	assertion.False(res.NoConsensus)
}

func TestConsensusUnanimousBuy(t *testing.T) {
	assertion := assert.New(t)

	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s3", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s4", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s5", signal: models.SignalBuy, confidence: 0.9},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalBuy, res.Signal)
	assertion.InDelta(0.9, res.Confidence, 1e-9)
	assertion.True(res.HasConsensus)
	assertion.False(res.NoConsensus)
	assertion.Equal(5, res.BuySignals)
}

func TestConsensusTieAlwaysHolds(t *testing.T) {
	assertion := assert.New(t)

	// Both sides fully confident: the tie on counts decides, not the
	// confidence.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.95},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.95},
		&scriptedStrategy{key: "s3", signal: models.SignalSell, confidence: 0.95},
		&scriptedStrategy{key: "s4", signal: models.SignalSell, confidence: 0.95},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0.5, res.Confidence)
	assertion.False(res.HasConsensus)
	assertion.True(res.NoConsensus)
}

func TestConsensusSellSideWithAbstention(t *testing.T) {
	assertion := assert.New(t)

	// One strategy fails; its weight drops out of the denominator and the
	// remaining sells carry the vote.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalSell, confidence: 0.9},
		&scriptedStrategy{key: "s2", signal: models.SignalSell, confidence: 0.9},
		&scriptedStrategy{key: "s3", signal: models.SignalSell, confidence: 0.9},
		&scriptedStrategy{key: "s4", signal: models.SignalSell, confidence: 0.9},
		&scriptedStrategy{key: "s5", err: errors.New("feed gap")},
	)
	metrics := newMetricsStub()
	agg := newAggregator(reg, metrics)

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalSell, res.Signal)
	assertion.InDelta(0.9, res.Confidence, 1e-9)
	assertion.True(res.HasConsensus)
	assertion.Len(res.Votes, 4)
	assertion.Equal("feed gap", res.Errors["s5"])
	assertion.Equal(1, metrics.errorCount("strategy"))
}

func TestConsensusZeroTotalWeight(t *testing.T) {
	assertion := assert.New(t)

	// Every strategy fails: nothing voted, nothing divides.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", err: errors.New("down")},
		&scriptedStrategy{key: "s2", err: errors.New("down")},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0.0, res.Confidence)
	assertion.False(res.HasConsensus)
	assertion.True(res.NoConsensus)
	assertion.Empty(res.Votes)

	// Zero-weight votes execute but carry nothing into the denominator.
	reg2, keys2 := scriptedRegistry(t, 0,
		&scriptedStrategy{key: "z1", signal: models.SignalBuy, confidence: 0.9},
	)
	res = newAggregator(reg2, newMetricsStub()).Aggregate(context.Background(), snapshot1h(), keys2, 0.7)
	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0.0, res.Confidence)
}

func TestConsensusPanicAbstains(t *testing.T) {
	assertion := assert.New(t)

	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s3", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s4", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s5", panics: true},
	)
	metrics := newMetricsStub()
	agg := newAggregator(reg, metrics)

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalBuy, res.Signal)
	assertion.InDelta(0.9, res.Confidence, 1e-9)
	assertion.Len(res.Votes, 4)
	assertion.Contains(res.Errors["s5"], "panic")
	assertion.Equal(1, metrics.errorCount("strategy"))
}

func TestConsensusDeterministicOrder(t *testing.T) {
	assertion := assert.New(t)

	var mu sync.Mutex
	trace := make([]models.StrategyKey, 0, 10)
	mk := func(key models.StrategyKey) *scriptedStrategy {
		return &scriptedStrategy{
			key: key, signal: models.SignalHold, confidence: 0.5,
			traceMu: &mu, trace: &trace,
		}
	}
	reg, keys := scriptedRegistry(t, 0.2, mk("a"), mk("b"), mk("c"), mk("d"), mk("e"))
	agg := newAggregator(reg, newMetricsStub())

	agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)
	agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	want := []models.StrategyKey{"a", "b", "c", "d", "e", "a", "b", "c", "d", "e"}
	assertion.Equal(want, trace)
}

func TestConsensusSkipsDisabledAndUnknown(t *testing.T) {
	assertion := assert.New(t)

	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.9},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.9},
	)
	disabled := false
	_, err := reg.Configure("s2", models.StrategyPatch{Enabled: &disabled})
	assertion.NoError(err)

	metrics := newMetricsStub()
	agg := newAggregator(reg, metrics)

	res := agg.Aggregate(context.Background(), snapshot1h(), append(keys, "ghost"), 0.7)

	assertion.Len(res.Votes, 1)
	assertion.Equal("not registered", res.Errors["ghost"])
	assertion.NotContains(res.Errors, "s2")
	assertion.Equal(1, metrics.errorCount("strategy_unknown"))
}

func TestConsensusTimeframeFilter(t *testing.T) {
	assertion := assert.New(t)

	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.9},
	)
	_, err := reg.Configure("s1", models.StrategyPatch{Timeframes: []string{"4h"}})
	assertion.NoError(err)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)
	assertion.Empty(res.Votes)

	fourHour := &models.MarketData{Asset: "BTCUSDT", Timeframe: "4h"}
	res = agg.Aggregate(context.Background(), fourHour, keys, 0.7)
	assertion.Len(res.Votes, 1)
}

func TestConsensusThresholdBoundaryInclusive(t *testing.T) {
	assertion := assert.New(t)

	// At threshold 0.5 the neutral hold confidence itself reaches the
	// bar: consensus on standing still.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalHold, confidence: 0.5},
		&scriptedStrategy{key: "s2", signal: models.SignalHold, confidence: 0.5},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.5)

	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0.5, res.Confidence)
	assertion.True(res.HasConsensus)
	assertion.False(res.NoConsensus)
}

func TestConsensusSynthesizedHoldFlagged(t *testing.T) {
	assertion := assert.New(t)

	// Buys lead but miss the bar and nobody voted hold: the outcome is a
	// synthesized hold.
	reg, keys := scriptedRegistry(t, 0.2,
		&scriptedStrategy{key: "s1", signal: models.SignalBuy, confidence: 0.6},
		&scriptedStrategy{key: "s2", signal: models.SignalBuy, confidence: 0.6},
		&scriptedStrategy{key: "s3", signal: models.SignalBuy, confidence: 0.6},
		&scriptedStrategy{key: "s4", signal: models.SignalSell, confidence: 0.5},
		&scriptedStrategy{key: "s5", signal: models.SignalSell, confidence: 0.5},
	)
	agg := newAggregator(reg, newMetricsStub())

	res := agg.Aggregate(context.Background(), snapshot1h(), keys, 0.7)

	assertion.Equal(models.SignalHold, res.Signal)
	assertion.Equal(0, res.HoldSignals)
	assertion.True(res.NoConsensus)
}
