package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/platform/auth"
)

// Logger emits one structured line per request: method, path, status,
// latency and the caller principal. The caller is resolved after the
// handler chain returns because the auth middleware runs later and swaps
// the request context; reading it up front would always see a zero value.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			method := c.Request().Method
			path := c.Request().URL.Path
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			caller := auth.CallerFromContext(c.Request().Context())
			if !caller.IsZero() {
				evt = evt.Str("caller", caller.Short())
			}

			evt.
				Str("request_id", rid).
				Str("method", method).
				Str("path", path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
