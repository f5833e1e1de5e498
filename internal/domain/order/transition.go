package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

// Transition moves an order to a new status along the transition graph and
// records it in the timeline. Cancelling an order returns its lines to stock
// unless a refund already did.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, note string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(to)))

	if !to.Valid() {
		return nil, fault.Invalid("status", fmt.Sprintf("unknown status %q", to))
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if !o.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}

	prev := o.Clone()
	now := s.now().UTC()
	if note == "" {
		note = "Status changed to " + string(to)
	}
	o.Status = to
	o.UpdatedAt = now
	o.AddTimeline(to, note, now)

	restock := to == StatusCancelled && !o.Restocked
	if restock {
		o.Restocked = true
	}

	if err := s.orders.Update(ctx, o); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "update order")
	}

	if restock {
		if err := s.inventory.Restock(ctx, o.StockItems()); err != nil {
			span.RecordError(err)
			RevertOrder(ctx, s.orders, prev, o.Version)
			return nil, errors.Wrap(err, "restock cancelled order")
		}
	}

	s.metrics.transition(ctx, to)
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.publish(ctx, Event{Type: EventStatusChanged, Order: o, PreviousStatus: from, OccurredAt: now})

	return o, nil
}

// RevertOrder stores prev over the order currently at version. It is used
// when a committed status change could not apply its inventory side effect.
func RevertOrder(ctx context.Context, orders Repository, prev *Order, version int64) {
	ctx = context.WithoutCancel(ctx)
	p := prev.Clone()
	p.Version = version
	if err := orders.Update(ctx, p); err != nil {
		zctx.From(ctx).Error("Revert order failed",
			zap.String("order_id", p.ID),
			zap.Int64("version", version),
			zap.Error(err),
		)
	}
}
