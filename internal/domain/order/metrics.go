package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xenking/storefront-orders/internal/domain/order"

type metrics struct {
	checkouts     metric.Int64Counter
	transitions   metric.Int64Counter
	compensations metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var (
		m   metrics
		err error
	)
	if m.checkouts, err = meter.Int64Counter("orders.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("orders.transitions",
		metric.WithDescription("Admin status transitions by target status"),
	); err != nil {
		return nil, err
	}
	if m.compensations, err = meter.Int64Counter("orders.compensations",
		metric.WithDescription("Checkout compensation steps by step and outcome"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metrics) checkout(ctx context.Context, outcome string) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) transition(ctx context.Context, to Status) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
}

func (m *metrics) compensation(ctx context.Context, step string, ok bool) {
	m.compensations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.Bool("ok", ok),
	))
}

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}
