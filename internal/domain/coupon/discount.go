package coupon

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Discount calculates the amount c takes off subtotal. The result never
// exceeds subtotal and is rounded to cents.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	subtotal = floorAtZero(subtotal)

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred).Round(2)
	case DiscountFixed:
		amount = c.Value
	default:
		return zero
	}

	return decimal.Min(floorAtZero(amount), subtotal).Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
