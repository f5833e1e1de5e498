package httpmiddleware

import (
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// InjectLogger stores a per-request child of lg in the request context,
// tagged with the request ID when RequestID ran before it.
func InjectLogger(lg *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqLg := lg
			if id := RequestIDFromContext(req.Context()); id != "" {
				reqLg = lg.With(zap.String("request_id", id))
			}
			c.SetRequest(req.WithContext(zctx.Base(req.Context(), reqLg)))
			return next(c)
		}
	}
}

// LogRequests emits one line per request with its route, status and
// duration. Server errors log at error level, client errors at warn.
func LogRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the logged status is the one the client sees.
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", c.Response().Size),
			}
			lg := zctx.From(c.Request().Context())
			switch {
			case status >= 500:
				lg.Error("Request", fields...)
			case status >= 400:
				lg.Warn("Request", fields...)
			default:
				lg.Info("Request", fields...)
			}
			return nil
		}
	}
}
