//go:build !unix

// Package procgroup runs child processes in their own process group so a
// timeout or interrupt kills everything they forked.
package procgroup

import (
	"os"
	"os/exec"
)

// Isolate is a no-op without unix process groups; cancellation kills only
// the direct child.
func Isolate(cmd *exec.Cmd) {}

// Kill kills p
func Kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
