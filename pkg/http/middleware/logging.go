package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"TradeCouncil/pkg/logger"
)

// RequestLogging logs one line per request. Server errors log at error
// level, client errors at warn, the rest at debug to keep steady-state
// output quiet.
func RequestLogging(lgr *logger.Logger) echo.MiddlewareFunc {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("remote", c.RealIP()),
				logger.Int("status", status),
				logger.Duration("latency", time.Since(start)),
			}

			switch {
			case status >= 500:
				lgr.Error("http request", fields...)
			case status >= 400:
				lgr.Warn("http request", fields...)
			default:
				lgr.Debug("http request", fields...)
			}

			return err
		}
	}
}
