package flag

import (
	"errors"
	"fmt"
)

// Predefined errors for the flag package.
var (
	// ErrNotFound indicates the requested flag or override does not exist.
	ErrNotFound = errors.New("feature flag not found")

	// ErrDuplicateKey indicates a flag with the same key already exists.
	ErrDuplicateKey = errors.New("feature flag key already exists")

	// ErrValidation indicates the provided flag parameters are invalid.
	ErrValidation = errors.New("invalid feature flag parameters")

	// ErrConflict indicates a lost concurrent write: the caller's base
	// version is stale and the mutation must be retried on fresh state.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrInvalidTransition indicates a status state-machine violation.
	ErrInvalidTransition = errors.New("invalid flag status transition")

	// ErrStoreUnavailable indicates the backing store failed or timed out.
	// The evaluation path never surfaces it; it degrades to a fail-closed
	// decision instead.
	ErrStoreUnavailable = errors.New("flag store unavailable")
)

// InvalidTransitionError reports which operation was rejected in which
// status. It wraps ErrInvalidTransition so callers can match either the
// sentinel or the typed error.
type InvalidTransitionError struct {
	From      Status
	Operation string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid flag status transition: cannot %s a %s flag", e.Operation, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func newInvalidTransition(from Status, op string) error {
	return &InvalidTransitionError{From: from, Operation: op}
}
