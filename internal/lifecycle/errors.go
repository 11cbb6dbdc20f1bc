package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the target event id does not exist.
	// No writes are made.
	ErrNotFound = errors.New("event not found")

	// ErrInvalidInput matches every *ValidationError under errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransactionAborted is returned when an operation's transaction could
	// not be committed. None of its writes were applied.
	ErrTransactionAborted = errors.New("transaction aborted")
)

// ValidationError reports malformed input to Create or Update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
