package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/labstack/echo/v4"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/wire"
)

// Checkout places an order and responds with 201 and the created order.
func (h *Handler) Checkout(c echo.Context) error {
	req, err := decodeCheckout(c)
	if err != nil {
		return err
	}

	o, err := h.orders.PlaceOrder(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return writeOrder(c, http.StatusCreated, o)
}

// Quote prices a cart the same way Checkout would, without committing it.
func (h *Handler) Quote(c echo.Context) error {
	req, err := decodeCheckout(c)
	if err != nil {
		return err
	}

	q, err := h.orders.Quote(c.Request().Context(), req)
	if err != nil {
		return err
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	wire.EncodeLines(&e, q.Lines)
	e.FieldStart("breakdown")
	wire.EncodeBreakdown(&e, q.Breakdown)
	e.ObjEnd()
	return writeJSON(c, http.StatusOK, &e)
}

func decodeCheckout(c echo.Context) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest
	d, err := readBody(c)
	if err != nil {
		return req, err
	}

	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				req.Items = append(req.Items, item)
				return err
			})
		case "shippingAddress":
			req.ShippingAddress, err = wire.DecodeAddress(d)
		case "paymentMethod":
			var m string
			m, err = d.Str()
			req.PaymentMethod = pricing.PaymentMethod(m)
		case "couponCode":
			req.CouponCode, err = optStr(d)
		case "giftCardCode":
			req.GiftCardCode, err = optStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return req, malformed(err)
	}
	return req, nil
}

func decodeCartItem(d *jx.Decoder) (order.CartItem, error) {
	var item order.CartItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			item.ProductID, err = d.Str()
		case "variantId":
			item.VariantID, err = optStr(d)
		case "quantity":
			item.Quantity, err = d.Int()
		case "price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p, perr := wire.DecodeDecimal(d)
			item.QuotedPrice = &p
			err = perr
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return item, err
}

// optStr reads a string that may also be given as null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
