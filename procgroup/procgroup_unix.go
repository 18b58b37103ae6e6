//go:build unix

// Package procgroup runs child processes in their own process group so a
// timeout or interrupt kills everything they forked.
package procgroup

import (
	"errors"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Isolate places cmd in a new process group and makes context cancellation
// send SIGKILL to the whole group. cmd must come from exec.CommandContext
// and must not have been started.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &unix.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		return Kill(cmd.Process)
	}
}

// Kill sends SIGKILL to the process group led by p
func Kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
