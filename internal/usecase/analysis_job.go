package usecase

import (
	"context"
	"fmt"

	"TradeCouncil/pkg/logger"
	"TradeCouncil/pkg/queue"
)

// AnalysisTaskType is the queue message type carrying analysis requests.
const AnalysisTaskType = "analysis.request"

// AnalysisTask asks a queue worker to analyze one asset.
type AnalysisTask struct {
	Asset     string `json:"asset"`
	Timeframe string `json:"timeframe"`
}

// AnalysisJob executes queued analysis tasks against the engine.
type AnalysisJob struct {
	engine *DecisionEngine
	log    *logger.Logger
}

var _ queue.Job = (*AnalysisJob)(nil)

func NewAnalysisJob(engine *DecisionEngine, log *logger.Logger) *AnalysisJob {
	return &AnalysisJob{engine: engine, log: log}
}

func (j *AnalysisJob) Name() string { return "watchlist_analysis" }

func (j *AnalysisJob) Type() string { return AnalysisTaskType }

func (j *AnalysisJob) Handle(ctx context.Context, payload interface{}) error {
	task, err := queue.ParsePayload[AnalysisTask](payload)
	if err != nil {
		return fmt.Errorf("analysis task payload: %w", err)
	}
	if task.Asset == "" {
		return fmt.Errorf("analysis task without asset")
	}

	rec := j.engine.AnalyzeAsset(ctx, AnalyzeParams{Asset: task.Asset, Timeframe: task.Timeframe})
	if rec.Error != "" {
		// Degraded outcomes are recorded on the Recommendation itself,
		// retrying the job would not improve them.
		j.log.Debug("queued analysis degraded",
			logger.String("asset", task.Asset),
			logger.String("error", rec.Error))
	}
	return nil
}
