package launcher

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
)

// RuntimeError is a failure of the launcher itself: a missing payload key,
// an unresolvable unit or listener, a child that could not be started.
// It implements cli.ExitCoder with exitcodes.RuntimeErr.
type RuntimeError struct {
	Err error
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ExitCode implements cli.ExitCoder
func (e *RuntimeError) ExitCode() int { return exitcodes.RuntimeErr }

// IsRuntimeError reports whether err wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var target *RuntimeError
	return errors.As(err, &target)
}

// TestFailureError reports a run in which at least one child failed. It
// implements cli.ExitCoder with exitcodes.TestFailure.
type TestFailureError struct {
	Message string
}

func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// ExitCode implements cli.ExitCoder
func (e *TestFailureError) ExitCode() int { return exitcodes.TestFailure }

// IsTestFailureError reports whether err wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var target *TestFailureError
	return errors.As(err, &target)
}
