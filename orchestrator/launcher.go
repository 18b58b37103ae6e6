package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/logging"
	"github.com/ethereum-optimism/infra/op-launcher/procgroup"
)

// DefaultWaitDelay bounds how long a killed child may hold its output pipes
const DefaultWaitDelay = 5 * time.Second

// ProcessResult is the outcome of one child process
type ProcessResult struct {
	ExitCode int
	TimedOut bool
	// Output is the tail of the child's stdout, ANSI codes stripped
	Output   string
	Duration time.Duration
}

// ProcessLauncher starts a child process with the given arguments and blocks
// until it exits. An error means the process could not be started or the
// caller's context ended; exit codes are reported in the result.
type ProcessLauncher interface {
	Launch(ctx context.Context, args []string) (ProcessResult, error)
}

// ExecLauncher re-executes a launcher binary as a child process
type ExecLauncher struct {
	// Binary defaults to the running executable
	Binary string
	// BaseArgs are placed before the per-launch arguments
	BaseArgs []string
	Dir      string
	// Env is appended to the current environment
	Env []string
	// Timeout kills the child once exceeded. Zero waits forever.
	Timeout time.Duration
	// ShowOutput mirrors the child's stdout and stderr to Stdout and Stderr
	ShowOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
	Log        log.Logger
}

var _ ProcessLauncher = (*ExecLauncher)(nil)

// Launch implements ProcessLauncher.
func (l *ExecLauncher) Launch(ctx context.Context, args []string) (ProcessResult, error) {
	binary := l.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return ProcessResult{}, fmt.Errorf("failed to locate launcher binary: %w", err)
		}
		binary = exe
	}
	logger := l.Log
	if logger == nil {
		logger = log.Root()
	}

	runCtx := ctx
	cancel := func() {}
	if l.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, append(append([]string(nil), l.BaseArgs...), args...)...)
	cmd.Dir = l.Dir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, append(os.Environ(), l.Env...))
	cmd.WaitDelay = DefaultWaitDelay
	// a killed child takes its go test processes down with it
	procgroup.Isolate(cmd)

	stdout := logging.NewTailBuffer(logging.DefaultTailBytes)
	stderr := logging.NewTailBuffer(logging.DefaultTailBytes)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if l.ShowOutput {
		cmd.Stdout = io.MultiWriter(stdout, writerOr(l.Stdout, os.Stdout))
		cmd.Stderr = io.MultiWriter(stderr, writerOr(l.Stderr, os.Stderr))
	}

	logger.Debug("Launching child process", "binary", binary, "args", args, "dir", l.Dir)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("failed to start child process: %w", err)
	}
	waitErr := cmd.Wait()

	res := ProcessResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   stdout.Text(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("child process interrupted: %w", ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		logger.Warn("Child process timed out and was killed", "args", args, "timeout", l.Timeout)
		return res, nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logger.Warn("Child process did not exit cleanly", "args", args, "err", waitErr)
	}
	if res.ExitCode != 0 {
		logger.Debug("Child process failed", "args", args, "exitCode", res.ExitCode, "stderr", stderr.Text())
	}
	return res, nil
}

func writerOr(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
