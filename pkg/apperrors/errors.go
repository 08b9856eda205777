package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrValidation             = errors.New("validation failed")
	ErrUnsupportedOperation   = errors.New("unsupported operation")
	ErrForbidden              = errors.New("forbidden")
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)

// NewValidationError returns an error wrapping ErrValidation.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DriverExecutionError carries a backend failure (bad SQL, permission denied,
// lost socket) to the caller. Error() returns the backend message unchanged
// because it is shown to the user as-is.
type DriverExecutionError struct {
	Driver string
	Err    error
}

func (e *DriverExecutionError) Error() string {
	return e.Err.Error()
}

func (e *DriverExecutionError) Unwrap() error {
	return e.Err
}

// IsDriverExecution reports whether err is or wraps a DriverExecutionError.
func IsDriverExecution(err error) bool {
	var de *DriverExecutionError
	return errors.As(err, &de)
}
