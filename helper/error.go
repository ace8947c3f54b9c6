package helper

import (
	"errors"
	"fmt"
)

// Typed errors returned by the store handlers. Callers match them with
// errors.Is; the handlers wrap them with operation context via NewError.
var (
	// ErrNotFound is returned when an entity, embedding or edge does not
	// exist or is inactive.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when an embedding vector length does
	// not match the registered model dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidWeight is returned when a score, strength or confidence
	// value falls outside [0,1].
	ErrInvalidWeight = errors.New("weight outside [0,1]")
	// ErrValidation is returned for structurally invalid input, e.g. a
	// self-loop edge.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEdge is returned when an identical active edge
	// (source, target, type) already exists. It is a validation error.
	ErrDuplicateEdge = fmt.Errorf("%w: duplicate active edge", ErrValidation)
)

// Error wraps an underlying error with the operation that produced it.
type Error struct {
	Operation string
	Err       error
}

// NewError creates a new Error with the given operation context.
func NewError(operation string, err error) *Error {
	return &Error{
		Operation: operation,
		Err:       err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("error in %v: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As matching.
func (e *Error) Unwrap() error {
	return e.Err
}
