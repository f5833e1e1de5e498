package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type instrumentKey struct{}

// Instrument wraps requests in otelhttp spans and metrics. Spans are named
// after the echo route template so IDs do not explode cardinality. Errors are
// rendered inside the span so the recorded status matches the response.
func Instrument(service string, mp metric.MeterProvider, tp trace.TracerProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := r.Context().Value(instrumentKey{}).(echo.Context)
			c.SetRequest(r)
			c.Response().Writer = w
			if err := next(c); err != nil {
				c.Error(err)
			}
		}), service,
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if c, ok := r.Context().Value(instrumentKey{}).(echo.Context); ok && c.Path() != "" {
					return r.Method + " " + c.Path()
				}
				return r.Method
			}),
		)

		return func(c echo.Context) error {
			w := c.Response().Writer
			r := c.Request()
			h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), instrumentKey{}, c)))
			c.Response().Writer = w
			return nil
		}
	}
}
