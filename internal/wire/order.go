package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

// EncodeOrder writes the public representation of an order.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	EncodeLines(e, o.Lines)
	e.FieldStart("shippingAddress")
	EncodeAddress(e, o.ShippingAddress)
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	if o.GiftCardCode != "" {
		e.FieldStart("giftCardCode")
		e.Str(o.GiftCardCode)
	}

	e.FieldStart("subtotal")
	EncodeMoney(e, o.Subtotal)
	e.FieldStart("discount")
	EncodeMoney(e, o.Discount)
	e.FieldStart("shippingFee")
	EncodeMoney(e, o.ShippingFee)
	e.FieldStart("tax")
	EncodeMoney(e, o.Tax)
	e.FieldStart("paymentFee")
	EncodeMoney(e, o.PaymentFee)
	e.FieldStart("giftCardApplied")
	EncodeMoney(e, o.GiftCardApplied)
	e.FieldStart("total")
	EncodeMoney(e, o.Total)
	e.FieldStart("finalTotal")
	EncodeMoney(e, o.FinalTotal)
	e.FieldStart("refundedTotal")
	EncodeMoney(e, o.RefundedTotal())

	e.FieldStart("refunds")
	e.ArrStart()
	for _, r := range o.Refunds {
		EncodeRefund(e, r)
	}
	e.ArrEnd()

	e.FieldStart("timeline")
	e.ArrStart()
	for _, t := range o.Timeline {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(string(t.Status))
		e.FieldStart("note")
		e.Str(t.Note)
		e.FieldStart("date")
		EncodeTime(e, t.CreatedAt)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("restocked")
	e.Bool(o.Restocked)
	e.FieldStart("version")
	e.Int64(o.Version)
	e.FieldStart("createdAt")
	EncodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	EncodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

// EncodeLines writes order lines.
func EncodeLines(e *jx.Encoder, lines []order.Line) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		if l.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(l.VariantID)
		}
		e.FieldStart("title")
		e.Str(l.Title)
		e.FieldStart("unitPrice")
		EncodeMoney(e, l.UnitPrice)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeRefund writes one refund record.
func EncodeRefund(e *jx.Encoder, r order.Refund) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("amount")
	EncodeMoney(e, r.Amount)
	e.FieldStart("reason")
	e.Str(r.Reason)
	e.FieldStart("restocked")
	e.Bool(r.Restocked)
	e.FieldStart("date")
	EncodeTime(e, r.CreatedAt)
	e.ObjEnd()
}

// EncodeAddress writes a shipping address, omitting empty optional fields.
func EncodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	fields := []struct {
		name  string
		value string
		opt   bool
	}{
		{"name", a.Name, false},
		{"line1", a.Line1, false},
		{"line2", a.Line2, true},
		{"city", a.City, false},
		{"region", a.Region, true},
		{"postalCode", a.PostalCode, false},
		{"country", a.Country, false},
		{"phone", a.Phone, true},
	}
	for _, f := range fields {
		if f.opt && f.value == "" {
			continue
		}
		e.FieldStart(f.name)
		e.Str(f.value)
	}
	e.ObjEnd()
}

// DecodeAddress reads a shipping address. Unknown fields are ignored.
func DecodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "name":
			target = &a.Name
		case "line1":
			target = &a.Line1
		case "line2":
			target = &a.Line2
		case "city":
			target = &a.City
		case "region":
			target = &a.Region
		case "postalCode":
			target = &a.PostalCode
		case "country":
			target = &a.Country
		case "phone":
			target = &a.Phone
		default:
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		*target = s
		return nil
	})
	return a, err
}

// EncodeBreakdown writes an itemized price calculation.
func EncodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.ObjStart()
	e.FieldStart("subtotal")
	EncodeMoney(e, b.Subtotal)
	e.FieldStart("discount")
	EncodeMoney(e, b.Discount)
	e.FieldStart("netAfterDiscount")
	EncodeMoney(e, b.NetAfterDiscount)
	e.FieldStart("shipping")
	EncodeMoney(e, b.Shipping)
	e.FieldStart("tax")
	EncodeMoney(e, b.Tax)
	e.FieldStart("paymentFee")
	EncodeMoney(e, b.PaymentFee)
	e.FieldStart("total")
	EncodeMoney(e, b.Total)
	e.FieldStart("giftCardDeduction")
	EncodeMoney(e, b.GiftCardDeduction)
	e.FieldStart("finalTotal")
	EncodeMoney(e, b.FinalTotal)
	e.ObjEnd()
}
