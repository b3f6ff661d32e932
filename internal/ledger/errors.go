package ledger

import (
	"context"
	"errors"
)

// Domain errors returned by ledger operations. Store implementations wrap
// these sentinels so callers can classify failures with errors.Is regardless
// of the backend.
var (
	// ErrInvalidInput is returned for malformed or out-of-range request
	// fields (non-positive amount, missing identifiers).
	ErrInvalidInput = errors.New("ledger: invalid input")

	// ErrNotFound is returned when a referenced account or transaction
	// does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrSelfTransfer is returned when a transfer names the same account
	// on both sides.
	ErrSelfTransfer = errors.New("ledger: self transfer not allowed")

	// ErrInsufficientFunds is returned when the sender balance is below
	// the requested amount at validation time.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrDuplicateKey is returned when account creation reuses an
	// external key.
	ErrDuplicateKey = errors.New("ledger: external key already in use")

	// ErrInternal is returned when the underlying store is unavailable or
	// a commit could not be durably recorded. State is left unchanged and
	// the caller may retry.
	ErrInternal = errors.New("ledger: internal failure")
)

// IsNotFound reports whether err indicates a missing account or transaction.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInsufficientFunds reports whether err indicates an uncovered debit.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// Classify returns a label for the error suitable for metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
