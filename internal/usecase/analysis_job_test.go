package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/pkg/logger"
)

func TestAnalysisJobHandlesQueuedTask(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))
	f.provider.On("GetMarketData", "BTCUSDT", mock.Anything).
		Return(&models.MarketData{Asset: "BTCUSDT", Timeframe: "1h", Price: 100}, nil)
	f.publisher.On("Publish", mock.Anything).Return(nil)

	job := NewAnalysisJob(f.engine, logger.Nop())
	assertion.Equal("watchlist_analysis", job.Name())
	assertion.Equal(AnalysisTaskType, job.Type())

	// Redis delivery hands payloads back as generic maps.
	err := job.Handle(ctx, map[string]interface{}{"asset": "BTCUSDT", "timeframe": "1h"})
	assertion.NoError(err)

	_, ok := f.engine.LastRecommendation(ctx, "BTCUSDT")
	assertion.True(ok)
}

func TestAnalysisJobRejectsBadPayload(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t)
	assertion.NoError(f.engine.Initialize(ctx))
	job := NewAnalysisJob(f.engine, logger.Nop())

	err := job.Handle(ctx, 42)
	assertion.Error(err)

	err = job.Handle(ctx, map[string]interface{}{"timeframe": "1h"})
	assertion.ErrorContains(err, "without asset")
}
