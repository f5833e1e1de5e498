// Package order owns the checkout saga and the order status lifecycle.
package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = fault.New(fault.KindNotFound, "order_not_found", "orderId", "order not found")

// ErrInvalidTransition is the sentinel behind InvalidTransitionError.
var ErrInvalidTransition = fault.New(fault.KindBusinessRule, "invalid_transition", "status",
	"status change is not allowed")

// InvalidTransitionError reports a status change outside the transition graph.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Order is the financial record of a checkout. Lines are a snapshot taken at
// purchase time and never follow later catalog edits.
type Order struct {
	ID              string
	Lines           []Line
	ShippingAddress Address
	PaymentMethod   pricing.PaymentMethod
	CouponCode      string
	GiftCardCode    string

	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	ShippingFee     decimal.Decimal
	Tax             decimal.Decimal
	PaymentFee      decimal.Decimal
	GiftCardApplied decimal.Decimal
	Total           decimal.Decimal
	FinalTotal      decimal.Decimal

	Status   Status
	Refunds  []Refund
	Timeline []TimelineEntry
	// Restocked is set once the order's lines have been returned to stock,
	// by cancellation or by a refund.
	Restocked bool
	Version   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is one purchased item.
type Line struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Address is where the order ships to.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Refund is an immutable record of money returned to the customer.
type Refund struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Restocked bool            `json:"restocked"`
	CreatedAt time.Time       `json:"created_at"`
}

// TimelineEntry is one event in the order's append-only history.
type TimelineEntry struct {
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// RefundedTotal returns the sum of all refunds.
func (o *Order) RefundedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range o.Refunds {
		sum = sum.Add(r.Amount)
	}
	return sum
}

// RefundableRemaining returns how much can still be refunded.
func (o *Order) RefundableRemaining() decimal.Decimal {
	return decimal.Max(decimal.Zero, o.Total.Sub(o.RefundedTotal()))
}

// StockItems returns the order lines as inventory quantities.
func (o *Order) StockItems() []inventory.Item {
	items := make([]inventory.Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = inventory.Item{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	return items
}

// FulfillmentStatus returns the last status set outside the refund
// processor. For an order that was never refunded it is the current status.
func (o *Order) FulfillmentStatus() Status {
	if !o.Status.isRefund() {
		return o.Status
	}
	for i := len(o.Timeline) - 1; i >= 0; i-- {
		if s := o.Timeline[i].Status; !s.isRefund() {
			return s
		}
	}
	return o.Status
}

// CanTransitionTo reports whether an admin may move o to status to. A
// partially refunded order may be cancelled, and it also keeps moving along
// the fulfillment path it was on when the refund happened.
func (o *Order) CanTransitionTo(to Status) bool {
	if CanTransition(o.Status, to) {
		return true
	}
	return o.Status == StatusPartiallyRefunded && CanTransition(o.FulfillmentStatus(), to)
}

// AddTimeline appends an entry to the order history.
func (o *Order) AddTimeline(status Status, note string, at time.Time) {
	o.Timeline = append(o.Timeline, TimelineEntry{Status: status, Note: note, CreatedAt: at})
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = slices.Clone(o.Lines)
	c.Refunds = slices.Clone(o.Refunds)
	c.Timeline = slices.Clone(o.Timeline)
	return &c
}

// Repository defines persistence operations for orders. Orders are never
// deleted.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update stores o only if the stored version still equals o.Version and
	// then increments o.Version. It returns fault.ErrConflict otherwise.
	Update(ctx context.Context, o *Order) error
}
