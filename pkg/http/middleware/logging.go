package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// RequestLogging logs every HTTP request with latency and status.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug("http request",
				logger.String("method", c.Request().Method),
				logger.String("uri", c.Request().RequestURI),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)))
			return err
		}
	}
}
