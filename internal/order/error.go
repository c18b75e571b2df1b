package order

import (
	"errors"
	"fmt"
)

// Kind classifies failures for the request boundary.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAuthorization
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, KindStorage for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

var (
	// -- Validation & Input --
	ErrTenantRequired  = errors.New("restaurant context is required")
	ErrNoProducts      = errors.New("at least one product is required")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 10000")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrEmptyPatch      = errors.New("nothing to update")

	// -- Resource State --
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrTableNotFound   = errors.New("table not found")
	ErrWaiterNotFound  = errors.New("waiter not found")

	// -- Concurrency & Transitions --
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrOrderClosed       = errors.New("order is already closed")
	ErrStaleVersion      = errors.New("resource was modified by another request")
)
