package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/wire"
)

// CheckCoupon reports the discount a coupon would grant on cartSubtotal.
// No usage is consumed.
func (h *Handler) CheckCoupon(c echo.Context) error {
	d, err := readBody(c)
	if err != nil {
		return err
	}

	var (
		code     string
		subtotal decimal.Decimal
	)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Str()
		case "cartSubtotal":
			subtotal, err = wire.DecodeDecimal(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return malformed(err)
	}
	if strings.TrimSpace(code) == "" {
		return fault.Invalid("code", "coupon code is required")
	}
	if subtotal.IsNegative() {
		return fault.Invalid("cartSubtotal", "cart subtotal must not be negative")
	}

	discount, err := h.coupons.Validate(c.Request().Context(), code, subtotal)
	if err != nil {
		return err
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(coupon.NormalizeCode(code))
	e.FieldStart("discountAmount")
	wire.EncodeMoney(&e, discount)
	e.ObjEnd()
	return writeJSON(c, http.StatusOK, &e)
}

// CheckGiftCard reports the balance of an active gift card.
func (h *Handler) CheckGiftCard(c echo.Context) error {
	d, err := readBody(c)
	if err != nil {
		return err
	}

	var code string
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		v, err := d.Str()
		code = v
		return errors.Wrap(err, key)
	})
	if err != nil {
		return malformed(err)
	}
	if strings.TrimSpace(code) == "" {
		return fault.Invalid("code", "gift card code is required")
	}

	balance, err := h.giftCards.CheckBalance(c.Request().Context(), code)
	if err != nil {
		return err
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(giftcard.NormalizeCode(code))
	e.FieldStart("balance")
	wire.EncodeMoney(&e, balance)
	e.ObjEnd()
	return writeJSON(c, http.StatusOK, &e)
}
