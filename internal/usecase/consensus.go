package usecase

import (
	"context"
	"fmt"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/pkg/logger"
)

// holdConfidence is the fixed neutral confidence reported when no side
// clears the consensus bar.
const holdConfidence = 0.5

// ConsensusResult is the weighted outcome of one strategy sweep.
type ConsensusResult struct {
	Signal       models.Signal
	Confidence   float64
	HasConsensus bool
	NoConsensus  bool
	Votes        []models.SignalVote
	BuySignals   int
	SellSignals  int
	HoldSignals  int
	Errors       map[string]string
}

// ConsensusAggregator runs strategies against a market snapshot and folds
// their votes into a single signal. Strategies run sequentially in the
// supplied key order, so the same snapshot and key set always tally the
// same way. A failing or panicking strategy abstains: it is logged and
// counted, and the sweep carries on.
type ConsensusAggregator struct {
	registry service.Registry
	metrics  drepo.Metrics
	log      *logger.Logger
}

func NewConsensusAggregator(registry service.Registry, metrics drepo.Metrics, log *logger.Logger) *ConsensusAggregator {
	return &ConsensusAggregator{registry: registry, metrics: metrics, log: log}
}

// Aggregate evaluates the given strategies on data and applies the decision
// rule at the given consensus threshold.
func (a *ConsensusAggregator) Aggregate(ctx context.Context, data *models.MarketData, keys []models.StrategyKey, threshold float64) *ConsensusResult {
	res := &ConsensusResult{
		Votes:  make([]models.SignalVote, 0, len(keys)),
		Errors: map[string]string{},
	}

	var buyConf, sellConf, totalWeight float64

	for _, key := range keys {
		impl, cfg, ok := a.registry.Get(key)
		if !ok {
			res.Errors[string(key)] = "not registered"
			a.metrics.RecordError("strategy_unknown")
			a.log.Warn("strategy not registered, skipping", logger.String("strategy", string(key)))
			continue
		}
		if !cfg.Enabled {
			continue
		}
		if !timeframeApplies(cfg.Timeframes, data.Timeframe) {
			continue
		}

		verdict, err := a.evaluate(ctx, impl, data, cfg.Params)
		if err != nil {
			execErr := &models.StrategyExecutionError{Strategy: key, Err: err}
			res.Errors[string(key)] = err.Error()
			a.metrics.RecordError("strategy")
			a.log.Warn("strategy abstained", logger.String("asset", data.Asset), logger.Error(execErr))
			continue
		}

		res.Votes = append(res.Votes, models.SignalVote{
			Strategy:   key,
			Signal:     verdict.Signal,
			Confidence: verdict.Confidence,
			Weight:     cfg.Weight,
		})
		totalWeight += cfg.Weight

		switch verdict.Signal {
		case models.SignalBuy:
			res.BuySignals++
			buyConf += verdict.Confidence * cfg.Weight
		case models.SignalSell:
			res.SellSignals++
			sellConf += verdict.Confidence * cfg.Weight
		default:
			res.HoldSignals++
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}

	if totalWeight == 0 {
		res.Signal = models.SignalHold
		res.Confidence = 0
		res.HasConsensus = false
		res.NoConsensus = true
		return res
	}

	switch {
	case res.BuySignals > res.SellSignals && buyConf/totalWeight > threshold:
		res.Signal = models.SignalBuy
		res.Confidence = buyConf / totalWeight
	case res.SellSignals > res.BuySignals && sellConf/totalWeight > threshold:
		res.Signal = models.SignalSell
		res.Confidence = sellConf / totalWeight
	default:
		res.Signal = models.SignalHold
		res.Confidence = holdConfidence
	}

	res.HasConsensus = res.Confidence >= threshold
	// A hold nobody voted for is a synthesized outcome, not a consensus to
	// stand still.
	res.NoConsensus = res.Signal == models.SignalHold && res.HoldSignals == 0
	return res
}

// evaluate shields the sweep from a panicking strategy.
func (a *ConsensusAggregator) evaluate(ctx context.Context, impl service.Strategy, data *models.MarketData, params map[string]float64) (verdict service.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return impl.Evaluate(ctx, data, params)
}

func timeframeApplies(timeframes []string, tf string) bool {
	if len(timeframes) == 0 {
		return true
	}
	for _, t := range timeframes {
		if t == tf {
			return true
		}
	}
	return false
}
