package ledger

import "errors"

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus indicates a label outside the status enum.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrReasonTooShort indicates a no_entregado transition without enough detail.
	ErrReasonTooShort = errors.New("a reason is required when the order was not delivered")
	// ErrForbidden indicates the caller may not see the order.
	ErrForbidden = errors.New("order belongs to another user")
)
