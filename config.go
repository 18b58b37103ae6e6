package launcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-launcher/flags"
	"github.com/ethereum-optimism/infra/op-launcher/inventory"
	"github.com/ethereum-optimism/infra/op-launcher/types"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	TestDir          string
	Units            []types.TestUnit
	Run              types.RunConfiguration
	ShowOutput       bool
	Env              []string      // KEY=VALUE pairs added to every child process
	ProgressInterval time.Duration // Interval between updates of the progress listener
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	testDir := ctx.String(flags.TestDir.Name)
	if testDir == "" {
		testDir = "."
	}
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	units, err := types.ParseUnits(strings.Join(ctx.StringSlice(flags.Tests.Name), ","))
	if err != nil {
		return nil, err
	}
	listeners := ctx.StringSlice(flags.Listeners.Name)
	var env []string

	if path := ctx.String(flags.Inventory.Name); path != "" {
		inv, err := inventory.Load(path)
		if err != nil {
			return nil, err
		}
		declared, err := inv.Units(absTestDir)
		if err != nil {
			return nil, fmt.Errorf("inventory %s: %w", path, err)
		}
		units = append(units, declared...)
		if len(listeners) == 0 {
			listeners = inv.Listeners
		}
		env = inv.Environ()
	}

	if err := checkUnique(units); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no test units to run")
	}

	isolation := types.IsolationMode(strings.ToLower(ctx.String(flags.Isolation.Name)))
	if !isolation.IsValid() {
		return nil, fmt.Errorf("invalid isolation mode: %s. Must be one of: %s, %s",
			isolation, types.IsolationBatch, types.IsolationSequential)
	}

	run := types.RunConfiguration{
		ParallelMode: types.ParseParallelMode(ctx.String(flags.ParallelMode.Name)),
		Pool: types.PoolPolicy{
			Kind:    types.PoolDefault,
			Threads: ctx.Int(flags.PoolThreads.Name),
		},
		PoolSet:       ctx.IsSet(flags.PoolType.Name),
		Isolation:     isolation,
		Listeners:     listeners,
		PrintSummary:  ctx.Bool(flags.PrintSummary.Name),
		FailOnError:   ctx.Bool(flags.FailOnError.Name),
		HaltOnFailure: ctx.Bool(flags.HaltOnFailure.Name),
		Timeout:       ctx.Duration(flags.Timeout.Name),
	}
	if run.PoolSet {
		run.Pool.Kind = types.ParsePoolKind(ctx.String(flags.PoolType.Name))
	}
	if run.HaltOnFailure && run.Isolation != types.IsolationSequential {
		log.Warn("halt-on-failure only applies to sequential isolation", "isolation", run.Isolation)
	}

	return &Config{
		TestDir:          absTestDir,
		Units:            units,
		Run:              run,
		ShowOutput:       ctx.Bool(flags.ShowOutput.Name),
		Env:              append(env, flags.ChildEnv(ctx)...),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Log:              log,
	}, nil
}

func checkUnique(units []types.TestUnit) error {
	seen := make(map[types.TestUnit]struct{}, len(units))
	for _, u := range units {
		if _, ok := seen[u]; ok {
			return fmt.Errorf("duplicate test unit %q", u)
		}
		seen[u] = struct{}{}
	}
	return nil
}
