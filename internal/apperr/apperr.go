package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds surfaced by the locker and session core. Wrap them with
// fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrLockerUnavailable = errors.New("locker unavailable")
	ErrNoAvailableLocker = errors.New("no available locker")
	ErrAlreadyCheckedOut = errors.New("session already checked out")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrInvalidDuration   = errors.New("invalid duration")
)

// ValidationError lists every malformed or missing input field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a problem for field. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// OrNil returns e when it holds at least one field problem.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Code returns the stable machine-readable name of err's kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrLockerUnavailable):
		return "LOCKER_UNAVAILABLE"
	case errors.Is(err, ErrNoAvailableLocker):
		return "NO_AVAILABLE_LOCKER"
	case errors.Is(err, ErrAlreadyCheckedOut):
		return "ALREADY_CHECKED_OUT"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidDuration):
		return "INVALID_DURATION"
	default:
		return "INTERNAL"
	}
}
