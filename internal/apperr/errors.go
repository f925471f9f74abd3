// Package apperr defines the error kinds returned by scheduler operations.
// Wrap a kind with fmt.Errorf("%w: ...") and test it with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation error")
	ErrExternalIntegration = errors.New("external integration error")
	ErrFinancialIntegrity  = errors.New("financial integrity error")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func External(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalIntegration, fmt.Sprintf(format, args...), err)
}

func FinancialIntegrity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFinancialIntegrity, fmt.Sprintf(format, args...))
}

// Kind returns the taxonomy sentinel err wraps, or nil for unexpected errors.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrExternalIntegration, ErrFinancialIntegrity} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
