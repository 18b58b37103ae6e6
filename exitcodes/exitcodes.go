// Package exitcodes defines the exit codes shared by op-launcher and its
// child processes.
package exitcodes

// The orchestrator reads these back from its children: a child exiting with
// RuntimeErr is treated as an infrastructure failure, anything else non-zero
// as a test failure.
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Configuration, resolution or other launcher errors
)
