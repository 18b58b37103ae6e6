package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
	"github.com/ethereum-optimism/infra/op-launcher/orchestrator"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// launcher implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &launcher{}

// launcher runs the configured units once in child processes and reports
// the outcome.
type launcher struct {
	ctx       context.Context
	config    *Config
	version   string
	orch      *orchestrator.Orchestrator
	formatter ResultFormatter
	reporter  MetricsReporter
	report    *orchestrator.Report

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the run service. Children re-execute the running binary.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*launcher, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	exec := &orchestrator.ExecLauncher{
		Dir:        config.TestDir,
		Env:        config.Env,
		Timeout:    config.Run.Timeout,
		ShowOutput: config.ShowOutput,
		Stderr:     os.Stderr,
		Log:        config.Log,
	}
	return newLauncher(ctx, config, version, exec, os.Stdout, shutdownCallback)
}

func newLauncher(ctx context.Context, config *Config, version string, pl orchestrator.ProcessLauncher, out io.Writer, shutdownCallback func(error)) (*launcher, error) {
	config.Log.Debug("Creating launcher with config",
		"testDir", config.TestDir,
		"units", len(config.Units),
		"isolation", config.Run.Isolation,
		"parallelMode", config.Run.ParallelMode,
		"pool", config.Run.Pool,
		"listeners", config.Run.Listeners)

	orch, err := orchestrator.New(config.Run, pl, "", config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	return &launcher{
		ctx:              ctx,
		config:           config,
		version:          version,
		orch:             orch,
		formatter:        NewConsoleResultFormatter(config.Log, out),
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the units and returns once every child process has exited.
// Start implements the cliapp.Lifecycle interface.
func (l *launcher) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			l.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	l.ctx = ctx
	l.running.Store(true)

	l.config.Log.Info("Starting op-launcher", "version", l.version, "units", len(l.config.Units))

	if err := l.runTests(ctx); err != nil {
		l.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if l.report.Failed() {
		l.config.Log.Warn("Test run completed with failures, returning exit code 1")
		return NewTestFailureError(l.failureMessage())
	}

	go func() {
		l.shutdownCallback(nil)
	}()
	return nil
}

// runTests runs all units and processes the report
func (l *launcher) runTests(ctx context.Context) error {
	l.config.Log.Info("Running all tests...")
	report, err := l.orch.Run(ctx, l.config.Units)
	if report != nil {
		l.report = report
		if ferr := l.formatter.FormatResults(report); ferr != nil {
			l.config.Log.Warn("Failed to print results", "error", ferr)
		}
		l.reporter.ReportResults(l.config.Run.ParallelMode, report)
	}
	if err != nil {
		return NewRuntimeError(err)
	}
	l.config.Log.Info("Test run completed", "run_id", report.RunID, "failed", report.Failed(), "halted", report.Halted)
	return nil
}

func (l *launcher) failureMessage() string {
	failed := 0
	for _, u := range l.report.Units {
		if u.Failed() {
			failed++
		}
	}
	msg := fmt.Sprintf("%d of %d child processes failed (%s)",
		failed, len(l.report.Units), reporting.FormatSummary(l.report.Totals()))
	if l.report.Halted {
		msg += fmt.Sprintf(", %d units not run", len(l.report.Skipped))
	}
	return msg
}

// Stop stops the op-launcher service.
// Stop implements the cliapp.Lifecycle interface.
func (l *launcher) Stop(ctx context.Context) error {
	l.config.Log.Info("Stopping op-launcher")

	if !l.running.Load() {
		l.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	l.running.Store(false)

	l.config.Log.Info("op-launcher stopped successfully")
	return nil
}

// Stopped returns true if the op-launcher service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (l *launcher) Stopped() bool {
	return !l.running.Load()
}

// Report returns the report of the last run, or nil before Start
func (l *launcher) Report() *orchestrator.Report {
	return l.report
}
