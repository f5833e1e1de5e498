package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes Value percent of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a supported discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	ErrNotFound = fault.New(fault.KindNotFound, "coupon_not_found", "couponCode",
		"coupon code not found")
	ErrInactive = fault.New(fault.KindBusinessRule, "coupon_inactive", "couponCode",
		"coupon is not active")
	ErrExpired = fault.New(fault.KindBusinessRule, "coupon_expired", "couponCode",
		"coupon has expired")
	ErrUsageExceeded = fault.New(fault.KindBusinessRule, "coupon_usage_exceeded", "couponCode",
		"coupon usage limit reached")
	ErrMinPurchaseNotMet = fault.New(fault.KindBusinessRule, "coupon_min_purchase_not_met", "couponCode",
		"cart subtotal is below the coupon minimum purchase")
	// ErrExhausted is returned by Commit when the last use was taken by a
	// concurrent checkout between validation and commit.
	ErrExhausted = fault.New(fault.KindBusinessRule, "coupon_exhausted", "couponCode",
		"coupon has no remaining uses")
)

// Coupon is a discount code with usage accounting.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  decimal.Decimal
	// UsageLimit is nil for unlimited coupons.
	UsageLimit *int
	UsedCount  int
	Active     bool
	ExpiresAt  *time.Time
}

// Repository provides lookup and guarded mutation of coupon usage counters.
//
// IncrementUsage must test and increment in one step: it reports false,
// without changing anything, when the coupon is missing, inactive, expired
// at now, or already at its usage limit.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	IncrementUsage(ctx context.Context, code string, now time.Time) (bool, error)
	DecrementUsage(ctx context.Context, code string) error
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
