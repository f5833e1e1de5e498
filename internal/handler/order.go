package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/labstack/echo/v4"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/refund"
	"github.com/xenking/storefront-orders/internal/wire"
)

// GetOrder returns a single order.
func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return writeOrder(c, http.StatusOK, o)
}

// UpdateStatus moves an order along the status graph.
func (h *Handler) UpdateStatus(c echo.Context) error {
	d, err := readBody(c)
	if err != nil {
		return err
	}

	var status, note string
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			status, err = d.Str()
		case "note":
			note, err = optStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return malformed(err)
	}

	o, err := h.orders.Transition(c.Request().Context(), c.Param("id"), order.Status(status), note)
	if err != nil {
		return err
	}
	return writeOrder(c, http.StatusOK, o)
}

// Refund records a full or partial refund.
func (h *Handler) Refund(c echo.Context) error {
	d, err := readBody(c)
	if err != nil {
		return err
	}

	req := refund.Request{OrderID: c.Param("id")}
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "amount":
			req.Amount, err = wire.DecodeDecimal(d)
		case "reason":
			req.Reason, err = optStr(d)
		case "restock":
			req.Restock, err = d.Bool()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return malformed(err)
	}

	o, err := h.refunds.Refund(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return writeOrder(c, http.StatusOK, o)
}
