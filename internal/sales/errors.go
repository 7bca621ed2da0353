package sales

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// ErrValidation is the sentinel every *ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

// ErrRuleViolation is returned when an item carries more than MaxItemQuantity units.
var ErrRuleViolation = errors.New("cannot sell more than 20 identical items")

// FieldViolation describes one invalid input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violated field of a request, not only the first.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RuleViolationError identifies the line item that broke the quantity limit.
type RuleViolationError struct {
	Index    int
	ItemID   string
	Quantity int
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("%s: item %d has quantity %d", ErrRuleViolation, e.Index, e.Quantity)
}

func (e *RuleViolationError) Unwrap() error { return ErrRuleViolation }
