// Package pricing turns a priced cart and its monetary adjustments into an
// itemized total. It has no side effects and never talks to a ledger.
package pricing

import (
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how the customer pays.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// RequiresConfirmation reports whether orders paid this way wait for an
// external payment confirmation before fulfillment.
func (m PaymentMethod) RequiresConfirmation() bool {
	return m == PaymentBankTransfer
}

// Settings is the read-only store configuration snapshot used for a single
// calculation.
type Settings struct {
	Tax      TaxSettings
	Shipping ShippingSettings
	Payment  PaymentSettings
}

// TaxSettings controls the additive tax line.
type TaxSettings struct {
	Enabled bool
	// Rate is a fraction, 0.08 means 8%.
	Rate decimal.Decimal
	// IncludeInPrice only affects how prices are displayed. It does not
	// change the tax formula.
	IncludeInPrice bool
}

// ShippingSettings controls the flat shipping fee.
type ShippingSettings struct {
	StandardRate          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// PaymentSettings holds per-method surcharges.
type PaymentSettings struct {
	COD CODSettings
}

// CODSettings controls the cash-on-delivery surcharge.
type CODSettings struct {
	Enabled       bool
	AdditionalFee decimal.Decimal
}

// Line is a priced cart line. UnitPrice must come from the catalog.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Input holds everything a calculation needs.
type Input struct {
	Lines         []Line
	Settings      Settings
	PaymentMethod PaymentMethod
	// CouponDiscount is the discount already computed by the coupon ledger.
	CouponDiscount decimal.Decimal
	// GiftCardBalance is the balance already read from the gift card ledger.
	GiftCardBalance decimal.Decimal
}

// Breakdown is the itemized result of a calculation.
type Breakdown struct {
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	NetAfterDiscount  decimal.Decimal
	Shipping          decimal.Decimal
	Tax               decimal.Decimal
	PaymentFee        decimal.Decimal
	Total             decimal.Decimal
	GiftCardDeduction decimal.Decimal
	FinalTotal        decimal.Decimal
}

var zero = decimal.Zero

// Calculate prices the input. The step order is fixed: shipping is judged on
// the raw subtotal and tax on the discounted amount.
func Calculate(in Input) Breakdown {
	var b Breakdown

	b.Subtotal = Subtotal(in.Lines)

	b.Discount = decimal.Min(floorAtZero(in.CouponDiscount), b.Subtotal).Round(2)
	b.NetAfterDiscount = floorAtZero(b.Subtotal.Sub(b.Discount))

	b.Shipping = zero
	if !b.Subtotal.GreaterThan(in.Settings.Shipping.FreeShippingThreshold) {
		b.Shipping = floorAtZero(in.Settings.Shipping.StandardRate)
	}

	b.Tax = zero
	if in.Settings.Tax.Enabled {
		b.Tax = floorAtZero(b.NetAfterDiscount.Mul(in.Settings.Tax.Rate)).Round(2)
	}

	b.PaymentFee = zero
	if in.PaymentMethod == PaymentCOD && in.Settings.Payment.COD.Enabled {
		b.PaymentFee = floorAtZero(in.Settings.Payment.COD.AdditionalFee)
	}

	b.Total = floorAtZero(b.NetAfterDiscount.Add(b.Shipping).Add(b.Tax).Add(b.PaymentFee)).Round(2)
	b.GiftCardDeduction = decimal.Min(b.Total, floorAtZero(in.GiftCardBalance)).Round(2)
	b.FinalTotal = b.Total.Sub(b.GiftCardDeduction)

	return b
}

// Subtotal returns the sum of unit price times quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
