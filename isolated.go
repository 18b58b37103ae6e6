package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// UnitOptions configures the isolated single-unit child command
type UnitOptions struct {
	ChildOptions
	Unit     string
	Listener string
}

// RunUnit executes one unit sequentially with one listener and always prints
// the summary line. It returns exitcodes.TestFailure when a method failed and
// exitcodes.Success otherwise; infrastructure failures are returned as a
// RuntimeError.
func RunUnit(ctx context.Context, opts UnitOptions) (int, error) {
	unit := strings.TrimSpace(opts.Unit)
	listener := strings.TrimSpace(opts.Listener)
	if unit == "" || listener == "" {
		return exitcodes.RuntimeErr, NewRuntimeError(errors.New("a test unit and a listener are required"))
	}

	child, err := opts.ChildOptions.withDefaults()
	if err != nil {
		return exitcodes.RuntimeErr, NewRuntimeError(err)
	}

	cfg := types.RunConfiguration{
		ParallelMode: types.ParallelNone,
		Pool:         types.PoolPolicy{Kind: types.PoolDefault, Threads: 1},
		Isolation:    types.IsolationSequential,
		Listeners:    []string{listener},
		PrintSummary: true,
	}

	child.Log.Info("Running isolated unit", "unit", unit, "listener", listener)
	result, err := execute(ctx, child, cfg, []types.TestUnit{types.TestUnit(unit)})
	if err != nil {
		return exitcodes.RuntimeErr, NewRuntimeError(fmt.Errorf("unit %s: %w", unit, err))
	}

	if err := reporting.PrintSummary(child.Stdout, result); err != nil {
		return exitcodes.RuntimeErr, NewRuntimeError(fmt.Errorf("writing summary: %w", err))
	}
	if !result.WasSuccessful() {
		return exitcodes.TestFailure, nil
	}
	return exitcodes.Success, nil
}
