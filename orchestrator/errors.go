package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// ChildProcessError describes a child process that could not be started,
// timed out or exited non-zero.
type ChildProcessError struct {
	Units    []types.TestUnit
	ExitCode int
	TimedOut bool
	// Infrastructure is set when the process could not be started or
	// exited with the runtime error code.
	Infrastructure bool
	Err            error
}

func (e *ChildProcessError) Error() string {
	target := types.JoinUnits(e.Units)
	switch {
	case e.Err != nil:
		return fmt.Sprintf("child process for %s failed: %v", target, e.Err)
	case e.TimedOut:
		return fmt.Sprintf("child process for %s timed out", target)
	default:
		return fmt.Sprintf("child process for %s exited with code %d", target, e.ExitCode)
	}
}

func (e *ChildProcessError) Unwrap() error {
	return e.Err
}

// IsChildProcessError checks if an error is a ChildProcessError
func IsChildProcessError(err error) bool {
	var childErr *ChildProcessError
	return errors.As(err, &childErr)
}
