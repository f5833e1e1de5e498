package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// StatusFor maps an error classification to its HTTP status code.
func StatusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case fault.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a route as
// {"error": {"kind", "code", "field", "message", "details"}}. Unclassified
// errors are logged and reported as a generic internal error.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, e := encodeError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(c.Request().Context()).Error("Request failed",
			zap.Error(err),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = writeJSON(c, status, e)
	}
	if err != nil {
		zctx.From(c.Request().Context()).Warn("Write error response", zap.Error(err))
	}
}

func encodeError(err error) (int, *jx.Encoder) {
	e := &jx.Encoder{}

	if fe, ok := fault.From(err); ok {
		e.ObjStart()
		e.FieldStart("error")
		e.ObjStart()
		e.FieldStart("kind")
		e.Str(string(fe.Kind))
		e.FieldStart("code")
		e.Str(fe.Code)
		if fe.Field != "" {
			e.FieldStart("field")
			e.Str(fe.Field)
		}
		e.FieldStart("message")
		e.Str(messageOf(err, fe))
		encodeDetails(e, err)
		e.ObjEnd()
		e.ObjEnd()
		return StatusFor(fe.Kind), e
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		writeEnvelope(e, httpKind(he.Code), httpCode(he.Code), msg)
		return he.Code, e
	}

	writeEnvelope(e, "internal", "internal_error", "internal server error")
	return http.StatusInternalServerError, e
}

func writeEnvelope(e *jx.Encoder, kind, code, msg string) {
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(kind)
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	e.ObjEnd()
}

// encodeDetails adds the structured part of typed domain errors.
func encodeDetails(e *jx.Encoder, err error) {
	var (
		stock    *inventory.InsufficientStockError
		missing  *product.NotFoundError
		badShift *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &stock):
		e.FieldStart("details")
		e.ArrStart()
		for _, s := range stock.Shortfalls {
			e.ObjStart()
			e.FieldStart("productId")
			e.Str(s.ProductID)
			if s.VariantID != "" {
				e.FieldStart("variantId")
				e.Str(s.VariantID)
			}
			e.FieldStart("requested")
			e.Int(s.Requested)
			e.FieldStart("available")
			e.Int(s.Available)
			e.ObjEnd()
		}
		e.ArrEnd()
	case errors.As(err, &missing):
		e.FieldStart("details")
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(missing.ProductID)
		if missing.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(missing.VariantID)
		}
		e.ObjEnd()
	case errors.As(err, &badShift):
		e.FieldStart("details")
		e.ObjStart()
		e.FieldStart("from")
		e.Str(string(badShift.From))
		e.FieldStart("to")
		e.Str(string(badShift.To))
		e.ObjEnd()
	}
}

// messageOf prefers the text of a typed error, which names the offending
// item, over the generic sentinel message. Wrapping context is dropped.
func messageOf(err error, fe *fault.Error) string {
	var (
		stock    *inventory.InsufficientStockError
		missing  *product.NotFoundError
		badShift *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &stock):
		return stock.Error()
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &badShift):
		return badShift.Error()
	default:
		return fe.Message
	}
}

func httpKind(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return string(fault.KindValidation)
	case http.StatusNotFound:
		return string(fault.KindNotFound)
	default:
		return "http"
	}
}

// httpCode turns a status into a machine code, 429 becomes "too_many_requests".
func httpCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "http_error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
