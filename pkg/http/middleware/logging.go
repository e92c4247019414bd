package middleware

import (
	"log"
	"time"

	applogger "StockCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one access log line per request. With a nil logger
// it falls back to the standard library so bare test servers still log.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			status := c.Response().Status
			if l == nil {
				log.Printf("[%s] %s %s - %d (%s)",
					req.Method, req.RequestURI, req.RemoteAddr, status, elapsed)
				return err
			}
			l.Info("http request",
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", req.RemoteAddr),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", elapsed),
			)
			return err
		}
	}
}
