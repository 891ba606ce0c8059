package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/service/cache"
	pkghttp "TradeCouncil/pkg/http"
	"TradeCouncil/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesFixture = `[
  [1690000000000, "100.0", "110.0", "95.0", "105.0", "1200.5", 1690003599999],
  [1690003600000, "105.0", "112.0", "101.0", "108.0", "900.25", 1690007199999],
  [1690007200000, "108.0", "115.0", "107.0", "114.0", "1500.0", 1690010799999]
]`

type fixtureServer struct {
	*httptest.Server
	klineCalls  int
	tickerCalls int
}

func newFixtureServer(t *testing.T, klinesBody string, klinesStatus int, tickerBody string, tickerStatus int) *fixtureServer {
	t.Helper()

	fs := &fixtureServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		fs.klineCalls++
		w.WriteHeader(klinesStatus)
		_, _ = w.Write([]byte(klinesBody))
	})
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		fs.tickerCalls++
		w.WriteHeader(tickerStatus)
		_, _ = w.Write([]byte(tickerBody))
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(srv *fixtureServer, prices *PriceBook) *Client {
	return NewClient(
		pkghttp.NewClient(pkghttp.WithTimeout(2*time.Second)),
		cache.NewTTLCache(),
		prices,
		Config{BaseURL: srv.URL, Limit: 3, CacheTTL: time.Minute},
		logger.Nop(),
	)
}

func TestGetMarketDataParsesKlines(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, klinesFixture, http.StatusOK, `{"symbol":"BTCUSDT","price":"114.50"}`, http.StatusOK)
	client := newTestClient(srv, nil)

	data, err := client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.NoError(t, err)

	assertion.Equal("BTCUSDT", data.Asset)
	assertion.Equal("1h", data.Timeframe)
	assertion.Equal([]float64{100, 105, 108}, data.Open)
	assertion.Equal([]float64{110, 112, 115}, data.High)
	assertion.Equal([]float64{95, 101, 107}, data.Low)
	assertion.Equal([]float64{105, 108, 114}, data.Close)
	assertion.Equal([]float64{1200.5, 900.25, 1500}, data.Volume)
	assertion.InDelta(114.50, data.Price, 1e-9)
	assertion.False(data.FetchedAt.IsZero())
}

func TestGetMarketDataCachesKlines(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, klinesFixture, http.StatusOK, `{"symbol":"BTCUSDT","price":"114.50"}`, http.StatusOK)
	client := newTestClient(srv, nil)

	_, err := client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.NoError(t, err)
	_, err = client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.NoError(t, err)

	assertion.Equal(1, srv.klineCalls)
	assertion.Equal(2, srv.tickerCalls)
}

func TestGetMarketDataPrefersLivePrice(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, klinesFixture, http.StatusOK, ``, http.StatusInternalServerError)

	prices := NewPriceBook(time.Minute)
	prices.Update(&models.Tick{Asset: "BTCUSDT", Price: 123.45, Timestamp: time.Now().Unix()})

	client := newTestClient(srv, prices)

	data, err := client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.NoError(t, err)

	assertion.InDelta(123.45, data.Price, 1e-9)
	assertion.Equal(0, srv.tickerCalls)
}

func TestGetMarketDataSurvivesSpotFailure(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, klinesFixture, http.StatusOK, `oops`, http.StatusBadGateway)
	client := newTestClient(srv, nil)

	data, err := client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.NoError(t, err)

	assertion.Zero(data.Price)
	last, ok := data.LastClose()
	assertion.True(ok)
	assertion.InDelta(114, last, 1e-9)
}

func TestGetMarketDataUpstreamFailure(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, `boom`, http.StatusServiceUnavailable, `{}`, http.StatusOK)
	client := newTestClient(srv, nil)

	_, err := client.GetMarketData(context.Background(), "BTCUSDT", drepo.TF1h)
	require.Error(t, err)
	assertion.Contains(err.Error(), "fetch klines")
}

func TestGetMarketDataRejectsEmptyAsset(t *testing.T) {
	assertion := assert.New(t)
	srv := newFixtureServer(t, klinesFixture, http.StatusOK, `{}`, http.StatusOK)
	client := newTestClient(srv, nil)

	_, err := client.GetMarketData(context.Background(), "", drepo.TF1h)
	assertion.ErrorIs(err, models.ErrInvalidInput)
	assertion.Zero(srv.klineCalls)
}

func TestParseKlinesMalformed(t *testing.T) {
	assertion := assert.New(t)

	_, err := parseKlines("BTCUSDT", "1h", []byte(`{"not":"an array"}`))
	assertion.Error(err)

	_, err = parseKlines("BTCUSDT", "1h", []byte(`[]`))
	assertion.Error(err)

	_, err = parseKlines("BTCUSDT", "1h", []byte(`[[1690000000000, "100.0"]]`))
	assertion.Error(err)

	_, err = parseKlines("BTCUSDT", "1h", []byte(`[[1690000000000, "abc", "1", "1", "1", "1"]]`))
	assertion.Error(err)
}
