package model

import "errors"

// Domain error taxonomy. Services return these sentinels (possibly wrapped)
// so callers can branch with errors.Is and the HTTP layer can map each one
// to a specific status code instead of a generic failure.
var (
	// ErrInvalidQuantity — requested quantity is zero, negative, or malformed.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrUnknownItem — product/raw-material id does not resolve in the catalog.
	ErrUnknownItem = errors.New("unknown item")

	// ErrUnknownWarehouse — warehouse (or location) id does not exist.
	ErrUnknownWarehouse = errors.New("unknown warehouse")

	// ErrInsufficientStock — a business-rule failure, not a bug: the balance
	// row does not have enough available quantity at the instant of the
	// transactional check. Never silently clamped.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateReference — reference number collision. Transient: the
	// numbering service retries internally before surfacing this.
	ErrDuplicateReference = errors.New("duplicate reference number")

	// ErrBusy — the balance row lock could not be acquired within the
	// configured timeout. Retryable by the caller.
	ErrBusy = errors.New("stock row is busy")

	// ErrIllegalStateTransition — the movement/reservation state machine
	// forbids the requested transition (e.g. cancelling a COMPLETED movement).
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrConsistencyViolation — a post-mutation invariant check failed.
	// Fatal for the operation: the transaction is aborted, never corrected.
	ErrConsistencyViolation = errors.New("stock balance consistency violation")

	// ErrNotFound — the referenced movement/reservation/balance does not exist.
	ErrNotFound = errors.New("record not found")
)
