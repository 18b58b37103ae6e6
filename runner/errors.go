package runner

import (
	"errors"
	"fmt"
)

// UnitResolutionError is returned when a test unit or listener cannot be
// located or constructed. It is fatal for the invocation.
type UnitResolutionError struct {
	Kind string // "unit" or "listener"
	Name string
	Err  error
}

func (e *UnitResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s %q: %v", e.Kind, e.Name, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *UnitResolutionError) Unwrap() error {
	return e.Err
}

// IsUnitResolutionError checks if the error is or wraps a UnitResolutionError
func IsUnitResolutionError(err error) bool {
	var resErr *UnitResolutionError
	return err != nil && errors.As(err, &resErr)
}
