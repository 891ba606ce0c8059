package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/service/ratelimit"
	"TradeCouncil/internal/usecase"
	xhttp "TradeCouncil/pkg/http"
	xlogger "TradeCouncil/pkg/logger"
)

// Analyze is the expensive route (market data fetch plus a full strategy
// sweep), so it gets a small per-client budget.
const (
	analyzeBurst      = 5
	analyzeRefillRate = 2
)

// DecisionHandler exposes the decision engine over Echo.
type DecisionHandler struct {
	engine  *usecase.DecisionEngine
	history drepo.HistoryStore
	rl      *ratelimit.Limiter
	log     *xlogger.Logger
	started time.Time
}

func NewDecisionHandler(engine *usecase.DecisionEngine, history drepo.HistoryStore, log *xlogger.Logger) *DecisionHandler {
	if log == nil {
		log = xlogger.Nop()
	}
	return &DecisionHandler{
		engine:  engine,
		history: history,
		rl:      ratelimit.New(),
		log:     log,
		started: time.Now(),
	}
}

func (h *DecisionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.GET("/watchlist", h.Watchlist)
	g.POST("/watchlist", h.WatchlistAdd)
	g.DELETE("/watchlist/:asset", h.WatchlistRemove)
	g.GET("/recommendations", h.Recommendations)
	g.GET("/recommendations/:asset", h.Recommendation)
	g.GET("/history/:asset", h.History)
	g.GET("/strategies", h.Strategies)
	g.PATCH("/strategies/:key", h.ConfigureStrategy)
}

// Analyze runs one decision cycle for the requested asset. The engine
// absorbs its own failures, so a degraded recommendation still comes back
// as a success envelope with the cause in the error field.
func (h *DecisionHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if !h.rl.Allow(c.RealIP()+":analyze", analyzeBurst, analyzeRefillRate) {
		h.log.Warn("analyze rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_RATE_LIMITED", "", "too many analysis requests", http.StatusTooManyRequests))
	}

	keys := make([]models.StrategyKey, 0, len(req.Strategies))
	for _, s := range req.Strategies {
		keys = append(keys, models.StrategyKey(s))
	}

	rec := h.engine.AnalyzeAsset(c.Request().Context(), usecase.AnalyzeParams{
		Asset:      req.Asset,
		Timeframe:  req.Timeframe,
		Strategies: keys,
	})
	return xhttp.SuccessResponse(c, rec)
}

func (h *DecisionHandler) Watchlist(c echo.Context) error {
	assets, err := h.engine.GetWatchlist(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.ListResponse(c, assets, int64(len(assets)))
}

func (h *DecisionHandler) WatchlistAdd(c echo.Context) error {
	req := &models.WatchlistAddRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	added, err := h.engine.AddToWatchlist(c.Request().Context(), req.Asset)
	if err != nil {
		return h.errorResponse(c, err)
	}

	body := map[string]interface{}{"asset": req.Asset, "added": added}
	if added {
		return xhttp.CreatedResponse(c, body)
	}
	return xhttp.SuccessResponse(c, body)
}

func (h *DecisionHandler) WatchlistRemove(c echo.Context) error {
	asset := c.Param("asset")

	removed, err := h.engine.RemoveFromWatchlist(c.Request().Context(), asset)
	if err != nil {
		return h.errorResponse(c, err)
	}
	if !removed {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("asset %s is not watched", asset))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"asset": asset, "removed": true})
}

func (h *DecisionHandler) Recommendations(c echo.Context) error {
	recs := h.engine.Recommendations(c.Request().Context())
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *DecisionHandler) Recommendation(c echo.Context) error {
	asset := c.Param("asset")

	rec, ok := h.engine.LastRecommendation(c.Request().Context(), asset)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no recommendation for %s", asset))
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *DecisionHandler) History(c echo.Context) error {
	asset := c.Param("asset")
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.history.Recent(c.Request().Context(), asset, req.Limit)
	if err != nil {
		if !errors.Is(err, models.ErrHistoryDisabled) {
			h.log.Error("history query failed", xlogger.String("asset", asset), xlogger.Error(err))
		}
		return h.errorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DecisionHandler) Strategies(c echo.Context) error {
	configs := h.engine.StrategyConfigs()
	return xhttp.ListResponse(c, configs, int64(len(configs)))
}

func (h *DecisionHandler) ConfigureStrategy(c echo.Context) error {
	key := models.StrategyKey(c.Param("key"))
	req := &models.StrategyPatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg, err := h.engine.ConfigureStrategy(key, models.StrategyPatch{
		Enabled:    req.Enabled,
		Weight:     req.Weight,
		Params:     req.Params,
		Timeframes: req.Timeframes,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, cfg)
}

// Health reports process liveness plus the state of the history backend.
// A disabled history store is a deliberate configuration, not a failure.
func (h *DecisionHandler) Health(c echo.Context) error {
	historyState := "ok"
	if err := h.history.Health(c.Request().Context()); err != nil {
		if errors.Is(err, models.ErrHistoryDisabled) {
			historyState = "disabled"
		} else {
			historyState = "unhealthy"
			h.log.Warn("history health check failed", xlogger.Error(err))
		}
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"history": historyState,
	})
}

// errorResponse maps domain sentinels onto the API error envelope.
func (h *DecisionHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotInitialized):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_NOT_READY", "", "engine is not initialized", http.StatusServiceUnavailable).WithError(err))
	case errors.Is(err, models.ErrHistoryDisabled):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_HISTORY_DISABLED", "", "history store is disabled", http.StatusServiceUnavailable).WithError(err))
	case errors.Is(err, models.ErrStrategyNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	default:
		h.log.Error("request failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}
