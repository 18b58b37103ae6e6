// Package orchestrator maps a run onto child processes: the whole inventory
// in one batch child, or every unit in its own child, one after another.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
	"github.com/ethereum-optimism/infra/op-launcher/metrics"
	"github.com/ethereum-optimism/infra/op-launcher/payload"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// Child subcommands
const (
	BatchCommand = "batch"
	UnitCommand  = "unit"
)

// DefaultListener is used by isolated children when none is configured
const DefaultListener = "log"

// UnitReport is the outcome of one child process
type UnitReport struct {
	Units    []types.TestUnit
	Launched bool
	ExitCode int
	TimedOut bool
	// Result is the summary parsed from the child's output, if it printed one
	Result    types.RunResult
	HasResult bool
	Duration  time.Duration
	Err       error
}

// Failed reports whether the child could not run, timed out, exited non-zero
// or reported failing tests.
func (u UnitReport) Failed() bool {
	if !u.Launched || u.TimedOut || u.ExitCode != exitcodes.Success {
		return true
	}
	return u.HasResult && !u.Result.WasSuccessful()
}

// Infrastructure reports whether the failure came from the launcher itself
// rather than from the tests.
func (u UnitReport) Infrastructure() bool {
	return !u.Launched || (!u.TimedOut && u.ExitCode == exitcodes.RuntimeErr)
}

// Report is the outcome of an orchestrated run
type Report struct {
	RunID     string
	Isolation types.IsolationMode
	Units     []UnitReport
	// Halted is set when a failure stopped the remaining units from being
	// launched. Skipped lists them in declaration order.
	Halted   bool
	Skipped  []types.TestUnit
	Duration time.Duration
}

// Failed reports whether any child failed
func (r *Report) Failed() bool {
	for _, u := range r.Units {
		if u.Failed() {
			return true
		}
	}
	return false
}

// Totals sums the parsed per-child results
func (r *Report) Totals() types.RunResult {
	var total types.RunResult
	for _, u := range r.Units {
		if u.HasResult {
			total = total.Add(u.Result)
		}
	}
	return total
}

// Orchestrator launches child processes according to a RunConfiguration
type Orchestrator struct {
	cfg        types.RunConfiguration
	launcher   ProcessLauncher
	log        log.Logger
	payloadDir string
}

// New creates an Orchestrator. payloadDir holds the batch payload file and
// defaults to the system temp directory.
func New(cfg types.RunConfiguration, launcher ProcessLauncher, payloadDir string, logger log.Logger) (*Orchestrator, error) {
	if launcher == nil {
		return nil, errors.New("process launcher is required")
	}
	if !cfg.Isolation.IsValid() {
		return nil, fmt.Errorf("invalid isolation mode %q", cfg.Isolation)
	}
	if cfg.Isolation == types.IsolationSequential && len(cfg.Listeners) > 1 {
		return nil, fmt.Errorf("sequential isolation takes exactly one listener, got %d", len(cfg.Listeners))
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Orchestrator{
		cfg:        cfg,
		launcher:   launcher,
		log:        logger.New("component", "orchestrator"),
		payloadDir: payloadDir,
	}, nil
}

// Run executes the units. The returned error is non-nil only for an
// interrupted run or an escalated child process failure; test failures are
// reported through the Report.
func (o *Orchestrator) Run(ctx context.Context, units []types.TestUnit) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Isolation: o.cfg.Isolation}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	o.log.Info("Starting orchestrated run", "runID", report.RunID, "isolation", o.cfg.Isolation, "units", len(units))
	if o.cfg.Isolation == types.IsolationSequential {
		return report, o.runSequential(ctx, units, report)
	}
	return report, o.runBatch(ctx, units, report)
}

func (o *Orchestrator) runBatch(ctx context.Context, units []types.TestUnit, report *Report) error {
	path, err := payload.WriteTemp(o.payloadDir, payload.FromConfiguration(units, o.cfg))
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.log.Warn("Failed to remove payload file", "path", path, "err", err)
		}
	}()

	ur, err := o.launch(ctx, units, []string{BatchCommand, path})
	report.Units = append(report.Units, ur)
	if err != nil {
		return err
	}
	if ur.Launched && !ur.TimedOut && ur.ExitCode == exitcodes.Success {
		return nil
	}

	childErr := ur.childError()
	if o.cfg.FailOnError {
		return childErr
	}
	o.log.Warn("Batch child process failed", "err", childErr)
	return nil
}

func (o *Orchestrator) runSequential(ctx context.Context, units []types.TestUnit, report *Report) error {
	listener := DefaultListener
	if len(o.cfg.Listeners) == 1 {
		listener = o.cfg.Listeners[0]
	}

	for i, unit := range units {
		ur, err := o.launch(ctx, []types.TestUnit{unit}, []string{UnitCommand, string(unit), listener})
		report.Units = append(report.Units, ur)
		if err != nil {
			return err
		}
		if !ur.Failed() {
			continue
		}

		if o.cfg.FailOnError && ur.Infrastructure() {
			return ur.childError()
		}
		o.log.Warn("Unit failed", "unit", unit, "exitCode", ur.ExitCode, "timedOut", ur.TimedOut)
		if o.cfg.HaltOnFailure {
			report.Halted = true
			report.Skipped = append([]types.TestUnit(nil), units[i+1:]...)
			o.log.Warn("Halting run after failure", "unit", unit, "skipped", len(report.Skipped))
			return nil
		}
	}
	return nil
}

// launch runs one child and records it. Start failures are folded into the
// UnitReport; the returned error is reserved for interruption and for start
// failures escalated by FailOnError.
func (o *Orchestrator) launch(ctx context.Context, units []types.TestUnit, args []string) (UnitReport, error) {
	ur := UnitReport{Units: units}
	res, err := o.launcher.Launch(ctx, args)
	ur.Duration = res.Duration

	if err != nil {
		if ctx.Err() != nil {
			return ur, err
		}
		ur.Err = err
		ur.ExitCode = -1
		metrics.RecordChildProcess(o.cfg.Isolation, metrics.OutcomeStartError, 0)
		metrics.RecordErrorDetails("child process start", err)
		o.log.Error("Failed to launch child process", "units", types.JoinUnits(units), "err", err)
		if o.cfg.FailOnError {
			return ur, ur.childError()
		}
		return ur, nil
	}

	ur.Launched = true
	ur.ExitCode = res.ExitCode
	ur.TimedOut = res.TimedOut
	ur.Result, ur.HasResult = reporting.ParseSummary(res.Output)

	outcome := metrics.OutcomeSuccess
	switch {
	case ur.TimedOut:
		outcome = metrics.OutcomeTimeout
	case ur.Failed():
		outcome = metrics.OutcomeFailure
	}
	metrics.RecordChildProcess(o.cfg.Isolation, outcome, res.Duration)
	o.log.Info("Child process finished", "units", types.JoinUnits(units), "exitCode", ur.ExitCode, "timedOut", ur.TimedOut, "duration", res.Duration)
	return ur, nil
}

func (u UnitReport) childError() *ChildProcessError {
	return &ChildProcessError{
		Units:          u.Units,
		ExitCode:       u.ExitCode,
		TimedOut:       u.TimedOut,
		Infrastructure: u.Infrastructure(),
		Err:            u.Err,
	}
}
