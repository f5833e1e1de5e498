// Package refund applies partial and full refunds to placed orders.
package refund

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/order"
)

const instrumentationName = "github.com/xenking/storefront-orders/internal/domain/refund"

var (
	ErrNotAllowed = fault.New(fault.KindBusinessRule, "refund_not_allowed", "orderId",
		"order status does not allow refunds")
	ErrExceedsTotal = fault.New(fault.KindBusinessRule, "refund_exceeds_total", "amount",
		"refund amount exceeds the refundable remainder")
)

// Restocker returns order lines to stock.
type Restocker interface {
	Restock(ctx context.Context, items []inventory.Item) error
}

// Request describes one refund action.
type Request struct {
	OrderID string
	Amount  decimal.Decimal
	Reason  string
	// Restock returns every order line to stock in full, regardless of the
	// refunded amount. It has effect at most once per order.
	Restock bool
}

// Deps holds the collaborators of a Processor. Publisher, MeterProvider and
// TracerProvider are optional.
type Deps struct {
	Orders    order.Repository
	Inventory Restocker
	Publisher order.Publisher

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Processor validates and records refunds.
type Processor struct {
	orders    order.Repository
	inventory Restocker
	publisher order.Publisher

	refunds metric.Int64Counter
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// NewProcessor creates a Processor.
func NewProcessor(d Deps) (*Processor, error) {
	if d.Publisher == nil {
		d.Publisher = order.NopPublisher{}
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}

	refunds, err := d.MeterProvider.Meter(instrumentationName).Int64Counter("orders.refunds",
		metric.WithDescription("Refund attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}

	return &Processor{
		orders:    d.Orders,
		inventory: d.Inventory,
		publisher: d.Publisher,
		refunds:   refunds,
		tracer:    d.TracerProvider.Tracer(instrumentationName),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// Refund records a refund against an order. The refund record, status change,
// timeline entry and restock flag are stored in one versioned update, so a
// concurrent refund on the same order fails with fault.ErrConflict instead of
// pushing the refunded sum past the order total.
func (p *Processor) Refund(ctx context.Context, req Request) (_ *order.Order, rerr error) {
	ctx, span := p.tracer.Start(ctx, "refund.Refund")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.OrderID))
	defer func() {
		out := "refunded"
		if rerr != nil {
			span.RecordError(rerr)
			out = "error"
			if fe, ok := fault.From(rerr); ok {
				out = fe.Code
			}
		}
		p.refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", out)))
	}()

	if !req.Amount.IsPositive() {
		return nil, fault.Invalid("amount", "refund amount must be greater than 0")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, fault.Invalid("amount", "refund amount must not have more than 2 decimal places")
	}

	o, err := p.orders.Get(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}

	if !o.Status.Refundable() {
		return nil, ErrNotAllowed
	}
	if req.Amount.GreaterThan(o.RefundableRemaining()) {
		return nil, ErrExceedsTotal
	}

	prev := o.Clone()
	prevStatus := o.Status
	now := p.now().UTC()

	restock := req.Restock && !o.Restocked
	r := order.Refund{
		ID:        p.newID(),
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
		Restocked: restock,
		CreatedAt: now,
	}
	o.Refunds = append(o.Refunds, r)
	if o.RefundedTotal().Equal(o.Total) {
		o.Status = order.StatusRefunded
	} else {
		o.Status = order.StatusPartiallyRefunded
	}
	if restock {
		o.Restocked = true
	}
	o.UpdatedAt = now
	o.AddTimeline(o.Status, timelineNote(r), now)

	if err := p.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if restock {
		if err := p.inventory.Restock(ctx, o.StockItems()); err != nil {
			order.RevertOrder(ctx, p.orders, prev, o.Version)
			return nil, errors.Wrap(err, "restock refunded order")
		}
	}

	zctx.From(ctx).Info("Order refunded",
		zap.String("order_id", o.ID),
		zap.Stringer("amount", r.Amount),
		zap.String("status", string(o.Status)),
		zap.Bool("restocked", restock),
	)
	if err := p.publisher.Publish(ctx, order.Event{
		Type:           order.EventRefunded,
		Order:          o,
		PreviousStatus: prevStatus,
		Refund:         &r,
		OccurredAt:     now,
	}); err != nil {
		zctx.From(ctx).Warn("Publish order event failed",
			zap.String("event", string(order.EventRefunded)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return o, nil
}

func timelineNote(r order.Refund) string {
	note := fmt.Sprintf("Refunded %s", r.Amount.StringFixed(2))
	if r.Reason != "" {
		note += ": " + r.Reason
	}
	if r.Restocked {
		note += " (items restocked)"
	}
	return note
}
