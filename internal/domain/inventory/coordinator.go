package inventory

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

// Coordinator applies stock changes for a whole cart.
type Coordinator struct {
	repo Repository
}

// NewCoordinator creates a Coordinator backed by the given Repository.
func NewCoordinator(repo Repository) *Coordinator {
	return &Coordinator{repo: repo}
}

// Reserve decrements stock for every item or for none of them. Every item is
// attempted so that an *InsufficientStockError reports all shortfalls, then
// the successful decrements are undone in reverse order.
func (c *Coordinator) Reserve(ctx context.Context, items []Item) error {
	merged := Merge(items)
	for _, it := range merged {
		if it.Quantity <= 0 {
			return fault.Invalid("items", "quantity must be greater than 0 for product "+it.ProductID)
		}
	}

	var (
		reserved   = make([]Item, 0, len(merged))
		shortfalls []Shortfall
	)
	for _, it := range merged {
		available, ok, err := c.repo.Decrement(ctx, it.Key(), it.Quantity)
		if err != nil {
			c.rollback(ctx, reserved)
			return errors.Wrapf(err, "reserve %s", it.Key())
		}
		if !ok {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Requested: it.Quantity,
				Available: available,
			})
			continue
		}
		reserved = append(reserved, it)
	}

	if len(shortfalls) > 0 {
		c.rollback(ctx, reserved)
		return &InsufficientStockError{Shortfalls: shortfalls}
	}
	return nil
}

// Restock returns items to stock unconditionally. Either every item is
// restocked or none is.
func (c *Coordinator) Restock(ctx context.Context, items []Item) error {
	merged := slices.DeleteFunc(Merge(items), func(it Item) bool { return it.Quantity <= 0 })
	if len(merged) == 0 {
		return nil
	}
	if err := c.repo.Increment(ctx, merged); err != nil {
		return errors.Wrap(err, "restock")
	}
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, reserved []Item) {
	if len(reserved) == 0 {
		return
	}
	undo := slices.Clone(reserved)
	slices.Reverse(undo)

	if err := c.repo.Increment(context.WithoutCancel(ctx), undo); err != nil {
		keys := make([]string, len(undo))
		for i, it := range undo {
			keys[i] = it.Key().String()
		}
		zctx.From(ctx).Error("Stock rollback failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}
