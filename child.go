package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-launcher/gotest"
	"github.com/ethereum-optimism/infra/op-launcher/listeners"
	"github.com/ethereum-optimism/infra/op-launcher/runner"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// ChildOptions configures a child process run, shared by the batch and unit
// commands.
type ChildOptions struct {
	// WorkDir is the module the Go test units resolve in. Defaults to the
	// current directory.
	WorkDir  string
	GoBinary string
	// TestTimeout is passed to every go test invocation
	TestTimeout      time.Duration
	ProgressInterval time.Duration
	// Resolver overrides the default resolver, which looks units up in
	// runner.DefaultCatalog first and then as Go packages.
	Resolver runner.Resolver
	// Stdout receives the summary line. Defaults to os.Stdout.
	Stdout io.Writer
	Log    log.Logger
}

func (o ChildOptions) withDefaults() (ChildOptions, error) {
	if o.Log == nil {
		o.Log = log.Root()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return o, fmt.Errorf("determining working directory: %w", err)
		}
		o.WorkDir = wd
	}
	if o.Resolver == nil {
		pkgs, err := gotest.NewResolver(gotest.Config{
			WorkDir:  o.WorkDir,
			GoBinary: o.GoBinary,
			Timeout:  o.TestTimeout,
			Log:      o.Log,
		})
		if err != nil {
			return o, err
		}
		o.Resolver = runner.MultiResolver{runner.DefaultCatalog, pkgs}
	}
	return o, nil
}

// execute runs the units once in this process with the configured listeners
func execute(ctx context.Context, opts ChildOptions, cfg types.RunConfiguration, units []types.TestUnit) (types.RunResult, error) {
	runID := uuid.New().String()
	logger := opts.Log.New("runID", runID)

	set, err := listeners.Build(cfg.Listeners, listeners.Options{
		Log:              logger,
		RunID:            runID,
		ParallelMode:     cfg.ParallelMode,
		ProgressInterval: opts.ProgressInterval,
	})
	if err != nil {
		return types.RunResult{}, err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Warn("Error closing listeners", "err", err)
		}
	}()

	engine, err := runner.NewEngine(opts.Resolver, logger)
	if err != nil {
		return types.RunResult{}, err
	}
	return engine.Run(ctx, cfg, units, runner.NewNotifier(set.Listeners()...))
}
