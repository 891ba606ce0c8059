package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/service/cache"
	pkgcache "TradeCouncil/pkg/cache"
	pkghttp "TradeCouncil/pkg/http"
	"TradeCouncil/pkg/logger"
)

const (
	defaultBaseURL  = "https://api.binance.com"
	defaultLimit    = 500
	defaultCacheTTL = 45 * time.Second
)

// Config tunes the REST market-data client.
type Config struct {
	BaseURL  string
	Limit    int
	CacheTTL time.Duration
}

// Client fetches candle history and spot prices from a Binance-style
// REST API. Candle payloads are cached so repeated analyses inside one
// scheduler sweep hit the exchange once.
type Client struct {
	http     *pkghttp.Client
	cache    cache.BytesCache
	prices   *PriceBook
	baseURL  string
	limit    int
	cacheTTL time.Duration
	log      *logger.Logger
}

var _ drepo.MarketDataProvider = (*Client)(nil)

// NewClient builds the provider. prices may be nil when the live
// stream is disabled; the spot endpoint then supplies current prices.
func NewClient(httpClient *pkghttp.Client, bytesCache cache.BytesCache, prices *PriceBook, cfg Config, lgr *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Client{
		http:     httpClient,
		cache:    bytesCache,
		prices:   prices,
		baseURL:  cfg.BaseURL,
		limit:    cfg.Limit,
		cacheTTL: cfg.CacheTTL,
		log:      lgr,
	}
}

// GetMarketData returns the candle snapshot for one asset/timeframe.
// The explicit Price is filled from the live tick book when fresh,
// falling back to the spot endpoint; when both fail the caller works
// from the last close.
func (c *Client) GetMarketData(ctx context.Context, asset string, tf drepo.Timeframe) (*models.MarketData, error) {
	if asset == "" {
		return nil, fmt.Errorf("%w: empty asset", models.ErrInvalidInput)
	}

	raw, err := c.klines(ctx, asset, tf)
	if err != nil {
		return nil, err
	}

	data, err := parseKlines(asset, string(tf), raw)
	if err != nil {
		return nil, err
	}
	data.FetchedAt = time.Now().UTC()

	if c.prices != nil {
		if price, ok := c.prices.Last(asset); ok {
			data.Price = price
			return data, nil
		}
	}

	price, err := c.spotPrice(ctx, asset)
	if err != nil {
		c.log.Debug("spot price unavailable",
			logger.String("asset", asset),
			logger.Error(err))
		return data, nil
	}
	data.Price = price
	return data, nil
}

func (c *Client) klines(ctx context.Context, asset string, tf drepo.Timeframe) ([]byte, error) {
	key := pkgcache.GenerateKeyWithParams("klines", asset, string(tf), c.limit)
	if b, ok, err := c.cache.GetBytes(key); err == nil && ok {
		return b, nil
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {asset},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(c.limit)},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", asset, tf, err)
	}

	if err := c.cache.SetBytes(key, body, c.cacheTTL); err != nil {
		c.log.Warn("cache klines", logger.String("asset", asset), logger.Error(err))
	}
	return body, nil
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *Client) spotPrice(ctx context.Context, asset string) (float64, error) {
	var tp tickerPrice
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/api/v3/ticker/price",
		QueryParams: map[string][]string{
			"symbol": {asset},
		},
	}, &tp)
	if err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse spot price %q: %w", tp.Price, err)
	}
	return price, nil
}

// parseKlines decodes the exchange kline array-of-arrays format:
// [openTime, open, high, low, close, volume, closeTime, ...] per row,
// with OHLCV values encoded as strings.
func parseKlines(asset, timeframe string, raw []byte) (*models.MarketData, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no klines returned for %s", asset)
	}

	data := &models.MarketData{
		Asset:     asset,
		Timeframe: timeframe,
		Open:      make([]float64, 0, len(rows)),
		High:      make([]float64, 0, len(rows)),
		Low:       make([]float64, 0, len(rows)),
		Close:     make([]float64, 0, len(rows)),
		Volume:    make([]float64, 0, len(rows)),
	}

	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row %d has %d fields", i, len(row))
		}
		o, err := cellFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("kline row %d open: %w", i, err)
		}
		h, err := cellFloat(row[2])
		if err != nil {
			return nil, fmt.Errorf("kline row %d high: %w", i, err)
		}
		l, err := cellFloat(row[3])
		if err != nil {
			return nil, fmt.Errorf("kline row %d low: %w", i, err)
		}
		cl, err := cellFloat(row[4])
		if err != nil {
			return nil, fmt.Errorf("kline row %d close: %w", i, err)
		}
		v, err := cellFloat(row[5])
		if err != nil {
			return nil, fmt.Errorf("kline row %d volume: %w", i, err)
		}

		data.Open = append(data.Open, o)
		data.High = append(data.High, h)
		data.Low = append(data.Low, l)
		data.Close = append(data.Close, cl)
		data.Volume = append(data.Volume, v)
	}

	return data, nil
}

func cellFloat(cell interface{}) (float64, error) {
	switch v := cell.(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected cell type %T", cell)
	}
}
