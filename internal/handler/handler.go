// Package handler exposes the checkout, ledger and order lifecycle
// operations as a JSON API on echo.
package handler

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/refund"
	"github.com/xenking/storefront-orders/internal/wire"
)

// Orders is the checkout and lifecycle service.
type Orders interface {
	Quote(ctx context.Context, req order.CheckoutRequest) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	Transition(ctx context.Context, id string, to order.Status, note string) (*order.Order, error)
}

// Refunds records refunds against orders.
type Refunds interface {
	Refund(ctx context.Context, req refund.Request) (*order.Order, error)
}

// Coupons checks a coupon against a cart subtotal without consuming it.
type Coupons interface {
	Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (decimal.Decimal, error)
}

// GiftCards reads gift card balances.
type GiftCards interface {
	CheckBalance(ctx context.Context, code string) (decimal.Decimal, error)
}

// Handler serves the storefront order API.
type Handler struct {
	orders    Orders
	refunds   Refunds
	coupons   Coupons
	giftCards GiftCards
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders Orders, refunds Refunds, coupons Coupons, giftCards GiftCards) *Handler {
	return &Handler{
		orders:    orders,
		refunds:   refunds,
		coupons:   coupons,
		giftCards: giftCards,
	}
}

// Register mounts all routes on g, typically the /api group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/checkout", h.Checkout)
	g.POST("/checkout/quote", h.Quote)
	g.POST("/coupon/check", h.CheckCoupon)
	g.POST("/giftcard/check", h.CheckGiftCard)
	g.GET("/orders/:id", h.GetOrder)
	g.PUT("/orders/:id/status", h.UpdateStatus)
	g.POST("/orders/:id/refund", h.Refund)
}

// readBody returns a decoder over the request body. An empty body is
// rejected the same way as malformed JSON.
func readBody(c echo.Context) (*jx.Decoder, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(raw) == 0 {
		return nil, fault.Invalid("body", "request body is required")
	}
	return jx.DecodeBytes(raw), nil
}

// malformed converts a decoding failure into a validation error.
func malformed(err error) error {
	if _, ok := fault.From(err); ok {
		return err
	}
	return fault.Invalid("body", "malformed JSON: "+err.Error())
}

func writeJSON(c echo.Context, status int, e *jx.Encoder) error {
	return c.Blob(status, echo.MIMEApplicationJSONCharsetUTF8, e.Bytes())
}

func writeOrder(c echo.Context, status int, o *order.Order) error {
	var e jx.Encoder
	wire.EncodeOrder(&e, o)
	return writeJSON(c, status, &e)
}
