package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ledger validates coupons against a cart and guards their usage counters.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Validate checks the coupon against cartSubtotal and returns the discount it
// would grant. It does not consume a use.
func (l *Ledger) Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (decimal.Decimal, error) {
	c, err := l.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, ErrNotFound
		}
		return zero, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return zero, ErrInactive
	}
	if c.ExpiresAt != nil && l.now().After(*c.ExpiresAt) {
		return zero, ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return zero, ErrUsageExceeded
	}
	if cartSubtotal.LessThan(c.MinPurchase) {
		return zero, ErrMinPurchaseNotMet
	}

	return Discount(c, cartSubtotal), nil
}

// Commit consumes one use of the coupon. Every successful call is a separate
// redemption; pair a failed checkout with Release.
func (l *Ledger) Commit(ctx context.Context, code string) error {
	ok, err := l.repo.IncrementUsage(ctx, NormalizeCode(code), l.now())
	if err != nil {
		return errors.Wrap(err, "increment coupon usage")
	}
	if !ok {
		return ErrExhausted
	}
	return nil
}

// Release gives back a use taken by Commit.
func (l *Ledger) Release(ctx context.Context, code string) error {
	if err := l.repo.DecrementUsage(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "decrement coupon usage")
	}
	return nil
}
