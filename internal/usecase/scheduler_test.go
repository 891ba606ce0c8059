package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"TradeCouncil/internal/domain/models"
	"TradeCouncil/internal/service/ratelimit"
	"TradeCouncil/pkg/logger"
)

func TestSchedulerInlineSweep(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))
	_, err := f.engine.AddToWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)
	_, err = f.engine.AddToWatchlist(ctx, "ETHUSDT")
	assertion.NoError(err)

	f.provider.On("GetMarketData", mock.Anything, mock.Anything).
		Return(&models.MarketData{Timeframe: "1h", Price: 100}, nil)
	f.publisher.On("Publish", mock.Anything).Return(nil)

	s := NewScheduler(f.engine, nil, ratelimit.New(), logger.Nop(), SchedulerOptions{
		Interval: 10 * time.Millisecond,
		Mode:     ScheduleInline,
	})
	assertion.NoError(s.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	// Both assets were analyzed; the per-asset bucket (burst 1, slow
	// refill) kept repeat sweeps from re-analyzing them.
	assertion.Len(f.store.All(ctx), 2)
	f.provider.AssertNumberOfCalls(t, "GetMarketData", 2)
}

func TestSchedulerQueueMode(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t, unanimousBuyVotes()...)
	assertion.NoError(f.engine.Initialize(ctx))
	_, err := f.engine.AddToWatchlist(ctx, "BTCUSDT")
	assertion.NoError(err)

	q := &queueFake{}
	s := NewScheduler(f.engine, q, ratelimit.New(), logger.Nop(), SchedulerOptions{
		Interval: 10 * time.Millisecond,
		Mode:     ScheduleQueue,
	})
	assertion.NoError(s.Start(ctx))
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	msgs := q.messages()
	assertion.NotEmpty(msgs)
	assertion.Equal(AnalysisTaskType, msgs[0].msgType)
	task, ok := msgs[0].payload.(AnalysisTask)
	assertion.True(ok)
	assertion.Equal("BTCUSDT", task.Asset)
	assertion.Equal("1h", task.Timeframe)

	// Queue mode only enqueues, the engine itself stays idle.
	assertion.Empty(f.store.All(ctx))
}

func TestSchedulerWithoutQueueFallsBackInline(t *testing.T) {
	assertion := assert.New(t)

	f, _ := newEngineFixture(t)
	s := NewScheduler(f.engine, nil, ratelimit.New(), logger.Nop(), SchedulerOptions{Mode: ScheduleQueue})
	assertion.Equal(ScheduleInline, s.opts.Mode)
}

func TestSchedulerStopsCleanly(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()

	f, _ := newEngineFixture(t)
	assertion.NoError(f.engine.Initialize(ctx))

	s := NewScheduler(f.engine, nil, ratelimit.New(), logger.Nop(), SchedulerOptions{Interval: time.Hour})
	assertion.NoError(s.Start(ctx))
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
