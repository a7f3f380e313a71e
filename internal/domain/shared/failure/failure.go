// Package failure holds the error taxonomy shared by the reservation engine.
package failure

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// ValidationError names the request field that failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CapacityExceededError reports the smallest availability found across the
// requested days so the caller can offer a feasible, smaller request.
type CapacityExceededError struct {
	Site      string
	Day       time.Time
	Requested int
	Available int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded at %s on %s: requested %d, available %d",
		e.Site, e.Day.Format("2006-01-02"), e.Requested, e.Available)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrCapacityExceeded)
}

// AsValidation extracts the offending field, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func AsCapacity(err error) (*CapacityExceededError, bool) {
	var ce *CapacityExceededError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
