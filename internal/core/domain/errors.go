// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDataConflict   = errors.New("data conflict")
	ErrMalformedInput = errors.New("malformed input")
	ErrUnavailable    = errors.New("resource unavailable")
)

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}

// RejectionError is returned when business rules reject a movement.
// It carries every finding, not just the first.
type RejectionError struct {
	Verdicts VerdictSet
}

func (e *RejectionError) Error() string {
	rejected := e.Verdicts.Rejections()
	msgs := make([]string, 0, len(rejected))
	for _, f := range rejected {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Rule, f.Message))
	}
	return "movement rejected: " + strings.Join(msgs, "; ")
}

// NotFoundError names the missing entity
func NotFoundError(entity string, id fmt.Stringer) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
