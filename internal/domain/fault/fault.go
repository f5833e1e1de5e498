// Package fault classifies domain errors so transports can render a specific
// message instead of a generic failure.
package fault

import "github.com/go-faster/errors"

// Kind is the coarse error category a caller can branch on.
type Kind string

const (
	// KindValidation marks malformed input, rejected before any resource is touched.
	KindValidation Kind = "validation"
	// KindNotFound marks a missing coupon, gift card, order or product.
	KindNotFound Kind = "not_found"
	// KindBusinessRule marks a well-formed request that the rules reject.
	KindBusinessRule Kind = "business_rule"
	// KindConflict marks a lost compare-and-update race. Safe to retry once.
	KindConflict Kind = "concurrency_conflict"
)

// Error is a classified domain error. Sentinel values are compared by
// identity, so wrap them rather than copying.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
}

// New returns a classified error.
func New(kind Kind, code, field, message string) *Error {
	return &Error{Kind: kind, Code: code, Field: field, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Invalid returns a validation error for the given field.
func Invalid(field, message string) *Error {
	return New(KindValidation, "invalid_request", field, message)
}

// ErrConflict is returned when an optimistic version check fails.
var ErrConflict = New(KindConflict, "concurrency_conflict", "", "resource was modified concurrently, retry")

// From extracts the classification of err, if any.
func From(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	if fe, ok := From(err); ok {
		return fe.Kind
	}
	return ""
}
