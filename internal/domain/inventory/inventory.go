// Package inventory reserves and restocks per-variant stock.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

// ErrInsufficientStock is the sentinel behind InsufficientStockError.
var ErrInsufficientStock = fault.New(fault.KindBusinessRule, "insufficient_stock", "items",
	"not enough stock for one or more items")

// Key identifies a stock record. VariantID is empty for products without
// variants.
type Key struct {
	ProductID string
	VariantID string
}

func (k Key) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.VariantID
}

// Item is a quantity of one stock record.
type Item struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Key returns the stock record the item refers to.
func (i Item) Key() Key {
	return Key{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Shortfall describes one item that could not be reserved.
type Shortfall struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

// InsufficientStockError lists every item that could not be reserved.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		k := Key{ProductID: s.ProductID, VariantID: s.VariantID}
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", k, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Repository provides guarded stock mutation.
//
// Decrement must test and decrement in one step. On success it returns the
// remaining stock and true. When stock is short it changes nothing and
// returns the stock currently available and false; a missing record counts
// as zero stock.
//
// Increment adds every item to stock in one all-or-nothing step, creating
// missing records.
type Repository interface {
	Decrement(ctx context.Context, key Key, qty int) (int, bool, error)
	Increment(ctx context.Context, items []Item) error
}

// Merge folds items sharing a key into one, keeping first-seen order.
func Merge(items []Item) []Item {
	idx := make(map[Key]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.Key()]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.Key()] = len(out)
		out = append(out, it)
	}
	return out
}
