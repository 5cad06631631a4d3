package quote

import (
	"errors"
	"fmt"
)

var (
	ErrDescriptionRequired = errors.New("description is required")
	ErrInvalidQuantity     = errors.New("quantity must be a whole number greater than or equal to 1")
	ErrInvalidUnitPrice    = errors.New("unit price must be greater than 0")
	ErrUnitPriceTooLarge   = errors.New("unit price exceeds the maximum allowed")
	ErrUnitPricePrecision  = errors.New("unit price must have at most 2 decimal places")
)

// Candidate field names reported by ValidationError.
const (
	FieldDescription = "description"
	FieldQuantity    = "quantity"
	FieldUnitPrice   = "unitPrice"
)

// ValidationError reports which candidate field was rejected and why.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
