package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy. Handlers map these to HTTP
// status codes; all of them leave the stores unchanged.
var (
	// ErrInsufficientFunds is returned when a withdrawal or purchase cost
	// exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLotNotFound is returned when a lot ID does not exist.
	ErrLotNotFound = errors.New("lot not found")

	// ErrExternalFetch wraps price source failures. Consumers recover by
	// treating the price as absent rather than failing the operation.
	ErrExternalFetch = errors.New("external fetch failed")
)

// ValidationError reports user input that violates a precondition
// (non-positive amounts, sell amount exceeding holdings, ...).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Msg)
	}
	return "validation failed: " + e.Msg
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
