package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"TradeCouncil/internal/domain/models"
)

func TestHistoryHandlerStoresRecommendation(t *testing.T) {
	assertion := assert.New(t)

	history := new(historyMock)
	history.On("Insert", mock.MatchedBy(func(rec *models.Recommendation) bool {
		return rec.Asset == "BTCUSDT" && rec.Signal == models.SignalBuy
	})).Return(nil)

	h := NewRecommendationHistoryHandler("recommendations", history, newMetricsStub())
	assertion.Equal("recommendations", h.Topic())

	payload, err := json.Marshal(&models.Recommendation{
		ID:     "rec-1",
		Asset:  "BTCUSDT",
		Signal: models.SignalBuy,
	})
	assertion.NoError(err)

	assertion.NoError(h.Handle(context.Background(), payload))
	history.AssertNumberOfCalls(t, "Insert", 1)
}

func TestHistoryHandlerRejectsMalformedPayload(t *testing.T) {
	assertion := assert.New(t)

	history := new(historyMock)
	metrics := newMetricsStub()
	h := NewRecommendationHistoryHandler("recommendations", history, metrics)

	err := h.Handle(context.Background(), []byte("{not json"))
	assertion.Error(err)
	assertion.Equal(1, metrics.errorCount("history_unmarshal"))

	// A record without an asset is dropped, not retried.
	err = h.Handle(context.Background(), []byte("{}"))
	assertion.NoError(err)
	history.AssertNotCalled(t, "Insert", mock.Anything)
}
