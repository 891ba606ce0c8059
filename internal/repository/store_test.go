package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCouncil/internal/domain/models"
	pkgcache "TradeCouncil/pkg/cache"
)

func sampleRecommendation(asset string, signal models.Signal) *models.Recommendation {
	stop := 98.80
	take := 106.75
	rr := 5.625
	return &models.Recommendation{
		ID:           "rec-" + asset,
		Asset:        asset,
		Timeframe:    "1h",
		CurrentPrice: 100,
		Signal:       signal,
		Confidence:   0.9,
		HasConsensus: true,
		StopLoss:     &stop,
		TakeProfit:   &take,
		RiskReward:   &rr,
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		BuySignals:   5,
		TotalSignals: 5,
	}
}

func TestStoreSetAndGetLast(t *testing.T) {
	assertion := assert.New(t)
	store := NewMemoryRecommendationStore()
	ctx := context.Background()

	rec := sampleRecommendation("BTCUSDT", models.SignalBuy)
	require.NoError(t, store.SetLast(ctx, rec))

	got, ok := store.GetLast(ctx, "BTCUSDT")
	assertion.True(ok)
	assertion.Equal(rec, got)

	_, ok = store.GetLast(ctx, "ETHUSDT")
	assertion.False(ok)
}

func TestStoreOverwritesPerAsset(t *testing.T) {
	assertion := assert.New(t)
	store := NewMemoryRecommendationStore()
	ctx := context.Background()

	first := sampleRecommendation("BTCUSDT", models.SignalBuy)
	second := sampleRecommendation("BTCUSDT", models.SignalSell)
	require.NoError(t, store.SetLast(ctx, first))
	require.NoError(t, store.SetLast(ctx, second))

	got, ok := store.GetLast(ctx, "BTCUSDT")
	assertion.True(ok)
	assertion.Equal(models.SignalSell, got.Signal)
	assertion.Len(store.All(ctx), 1)
}

func TestStoreAllKeepsInsertionOrder(t *testing.T) {
	assertion := assert.New(t)
	store := NewMemoryRecommendationStore()
	ctx := context.Background()

	for _, asset := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		require.NoError(t, store.SetLast(ctx, sampleRecommendation(asset, models.SignalHold)))
	}
	// Updating an existing asset must not move it to the back.
	require.NoError(t, store.SetLast(ctx, sampleRecommendation("BTCUSDT", models.SignalBuy)))

	all := store.All(ctx)
	require.Len(t, all, 3)
	assertion.Equal("BTCUSDT", all[0].Asset)
	assertion.Equal("ETHUSDT", all[1].Asset)
	assertion.Equal("SOLUSDT", all[2].Asset)
	assertion.Equal(models.SignalBuy, all[0].Signal)
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	assertion := assert.New(t)
	store := NewMemoryRecommendationStore()
	ctx := context.Background()

	assertion.ErrorIs(store.SetLast(ctx, nil), models.ErrInvalidInput)
	assertion.ErrorIs(store.SetLast(ctx, &models.Recommendation{}), models.ErrInvalidInput)
}

func TestStoreMirrorRoundTrip(t *testing.T) {
	assertion := assert.New(t)
	mirror := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = mirror.Close() })
	ctx := context.Background()

	writer := NewMemoryRecommendationStore(WithCacheMirror(mirror))
	rec := sampleRecommendation("BTCUSDT", models.SignalBuy)
	require.NoError(t, writer.SetLast(ctx, rec))

	// A fresh store sharing the mirror simulates a restarted process.
	reader := NewMemoryRecommendationStore(WithCacheMirror(mirror))
	got, ok := reader.GetLast(ctx, "BTCUSDT")
	require.True(t, ok)
	assertion.Equal(rec.ID, got.ID)
	assertion.Equal(rec.Signal, got.Signal)
	assertion.InDelta(rec.Confidence, got.Confidence, 1e-9)
	require.NotNil(t, got.StopLoss)
	assertion.InDelta(*rec.StopLoss, *got.StopLoss, 1e-9)

	// Warmed entries show up in listings too.
	assertion.Len(reader.All(ctx), 1)
}

func TestStoreMirrorMissStaysMiss(t *testing.T) {
	assertion := assert.New(t)
	mirror := pkgcache.NewMemoryCache()
	t.Cleanup(func() { _ = mirror.Close() })

	store := NewMemoryRecommendationStore(WithCacheMirror(mirror))
	_, ok := store.GetLast(context.Background(), "BTCUSDT")
	assertion.False(ok)
}

func TestDisabledHistory(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()
	h := DisabledHistory{}

	assertion.NoError(h.Init(ctx))
	assertion.ErrorIs(h.Insert(ctx, sampleRecommendation("BTCUSDT", models.SignalBuy)), models.ErrHistoryDisabled)
	_, err := h.Recent(ctx, "BTCUSDT", 10)
	assertion.ErrorIs(err, models.ErrHistoryDisabled)
	assertion.ErrorIs(h.Health(ctx), models.ErrHistoryDisabled)
	assertion.NoError(h.Close())
}

func TestNoopPublisher(t *testing.T) {
	assertion := assert.New(t)
	p := NoopPublisher{}

	assertion.NoError(p.Publish(context.Background(), sampleRecommendation("BTCUSDT", models.SignalBuy)))
	assertion.NoError(p.Close())
}

func TestKafkaPublisherRejectsInvalidInput(t *testing.T) {
	assertion := assert.New(t)
	p := NewKafkaRecommendationPublisher(nil, "recommendations")

	assertion.ErrorIs(p.Publish(context.Background(), nil), models.ErrInvalidInput)
	assertion.NoError(p.Close())
}
