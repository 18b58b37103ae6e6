package launcher

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-launcher/payload"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
)

// BatchOptions configures the batch child command
type BatchOptions struct {
	ChildOptions
	// PayloadPath is overlaid on the bundled defaults. Empty uses
	// payload.DefaultFilename; a path that does not exist is skipped.
	PayloadPath string
}

// RunBatch executes every unit named by the payload in this process. Test
// failures are reported through the summary line and listeners only; an
// error is returned for infrastructure failures, which always wrap a
// RuntimeError.
func RunBatch(ctx context.Context, opts BatchOptions) error {
	// The payload is validated before anything else is set up.
	p, err := payload.Load(opts.PayloadPath)
	if err != nil {
		return NewRuntimeError(err)
	}

	child, err := opts.ChildOptions.withDefaults()
	if err != nil {
		return NewRuntimeError(err)
	}

	cfg := p.RunConfiguration()
	child.Log.Info("Running batch",
		"units", len(p.Units),
		"parallelMode", cfg.ParallelMode,
		"pool", cfg.Pool,
		"listeners", cfg.Listeners)

	result, err := execute(ctx, child, cfg, p.Units)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("batch run failed: %w", err))
	}

	if p.PrintSummary {
		if err := reporting.PrintSummary(child.Stdout, result); err != nil {
			return NewRuntimeError(fmt.Errorf("writing summary: %w", err))
		}
	}
	return nil
}
