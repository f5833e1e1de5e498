package order

import (
	"context"
	"time"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventPlaced        EventType = "order.placed"
	EventStatusChanged EventType = "order.status_changed"
	EventRefunded      EventType = "order.refunded"
)

// Event is published after an order change has been committed.
type Event struct {
	Type           EventType
	Order          *Order
	PreviousStatus Status
	// Refund is set for EventRefunded.
	Refund     *Refund
	OccurredAt time.Time
}

// Publisher delivers order events to downstream consumers. Delivery is best
// effort: a publish failure never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
