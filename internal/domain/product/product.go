// Package product is the read-only catalog used to price carts.
package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

// ErrNotFound is returned when a requested product or variant does not exist.
var ErrNotFound = fault.New(fault.KindNotFound, "product_not_found", "items", "product not found")

// NotFoundError names the product or variant that is missing.
type NotFoundError struct {
	ProductID string
	VariantID string
}

func (e *NotFoundError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("product %s variant %s not found", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Product is a catalog item available for purchase.
type Product struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Variants []Variant
}

// Variant is a purchasable option of a product with its own price.
type Variant struct {
	ID    string
	Title string
	Price decimal.Decimal
}

// PriceFor returns the authoritative unit price and display title for the
// given variant, or for the product itself when variantID is empty.
func (p *Product) PriceFor(variantID string) (decimal.Decimal, string, error) {
	if variantID == "" {
		return p.Price, p.Title, nil
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v.Price, p.Title + " - " + v.Title, nil
		}
	}
	return decimal.Zero, "", &NotFoundError{ProductID: p.ID, VariantID: variantID}
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
