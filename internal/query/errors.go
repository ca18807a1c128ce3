package query

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterOperand indicates an operand that does not fit the field's value domain.
	ErrInvalidFilterOperand = errors.New("invalid filter operand")

	// ErrUnknownField indicates a field name outside the well-known field set.
	ErrUnknownField = errors.New("unknown field")
)

// InvalidOperandError describes a rejected filter construction.
// It matches ErrInvalidFilterOperand with errors.Is.
type InvalidOperandError struct {
	Op     Op
	Field  Field
	Value  any
	Reason string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("invalid filter operand: %s(%s, %v): %s", e.Op, e.Field, e.Value, e.Reason)
}

func (e *InvalidOperandError) Unwrap() error {
	return ErrInvalidFilterOperand
}

func invalidOperand(op Op, field Field, value any, reason string) error {
	return &InvalidOperandError{Op: op, Field: field, Value: value, Reason: reason}
}
