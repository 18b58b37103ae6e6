package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

const EnvVarPrefix = "OP_LAUNCHER"

var (
	TestDir = &cli.StringFlag{
		Name:    "testdir",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TESTDIR"),
		Usage:   "Directory of the Go module the test units are resolved in",
	}
	Tests = &cli.StringSliceFlag{
		Name:    "test",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST"),
		Usage:   "Test unit to run (repeatable, eg. './pkg/foo')",
	}
	Inventory = &cli.StringFlag{
		Name:    "inventory",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INVENTORY"),
		Usage:   "Path to an inventory file listing test units (eg. 'tests.yaml')",
	}
	Listeners = &cli.StringSliceFlag{
		Name:    "listener",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LISTENER"),
		Usage:   "Listener to attach to each run (repeatable: log, metrics, progress, events)",
	}
	Isolation = &cli.StringFlag{
		Name:    "isolation",
		Value:   string(types.IsolationBatch),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ISOLATION"),
		Usage:   "Process isolation: 'batch' runs all units in one child, 'sequential' one child per unit",
	}
	ParallelMode = &cli.StringFlag{
		Name:    "parallel-mode",
		Value:   string(types.ParallelNone),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLEL_MODE"),
		Usage:   "In-process parallelism: none, classes or methods",
	}
	PoolType = &cli.StringFlag{
		Name:    "pool-type",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POOL_TYPE"),
		Usage:   "Worker pool policy: cached, fixed, single, forkjoin or default",
	}
	PoolThreads = &cli.IntFlag{
		Name:    "pool-threads",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POOL_THREADS"),
		Usage:   "Worker count for the fixed and forkjoin pools",
	}
	PrintSummary = &cli.BoolFlag{
		Name:    "print-summary",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRINT_SUMMARY"),
		Usage:   "Have batch children print the summary line the results table is built from",
	}
	FailOnError = &cli.BoolFlag{
		Name:    "fail-on-error",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_ON_ERROR"),
		Usage:   "Abort on infrastructure failures of child processes",
	}
	HaltOnFailure = &cli.BoolFlag{
		Name:    "halt-on-failure",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HALT_ON_FAILURE"),
		Usage:   "Stop launching units after the first failing one (sequential isolation only)",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Kill a child process after this long (e.g. '10m'). Zero waits forever.",
	}
	ShowOutput = &cli.BoolFlag{
		Name:    "show-output",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_OUTPUT"),
		Usage:   "Mirror child process output to the console",
	}
	GoBinary = &cli.StringFlag{
		Name:    "go-binary",
		Value:   "go",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GO_BINARY"),
		Usage:   "Path to the Go binary to use for running tests",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_TIMEOUT"),
		Usage:   "Timeout passed to go test for each test method. Zero uses the go test default.",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between updates of the progress listener",
	}
)

var optionalFlags = []cli.Flag{
	TestDir,
	Tests,
	Inventory,
	Listeners,
	Isolation,
	ParallelMode,
	PoolType,
	PoolThreads,
	PrintSummary,
	FailOnError,
	HaltOnFailure,
	Timeout,
	ShowOutput,
	GoBinary,
	TestTimeout,
	ProgressInterval,
}

// childFlags are handed down to child processes through their environment
var childFlags = []cli.Flag{
	GoBinary,
	TestTimeout,
	ProgressInterval,
}

var Flags []cli.Flag

func init() {
	childFlags = append(childFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(Flags, optionalFlags...)
	Flags = append(Flags, oplog.CLIFlags(EnvVarPrefix)...)
	Flags = append(Flags, opmetrics.CLIFlags(EnvVarPrefix)...)
}

// CheckRequired validates the flag combination of the run command
func CheckRequired(ctx *cli.Context) error {
	if len(ctx.StringSlice(Tests.Name)) == 0 && ctx.String(Inventory.Name) == "" {
		return fmt.Errorf("one of --%s or --%s is required", Tests.Name, Inventory.Name)
	}
	return opflags.CheckRequiredXor(ctx)
}

type envFlag interface {
	GetEnvVars() []string
}

// ChildEnv returns KEY=VALUE pairs that reproduce the explicitly set
// child-relevant flags in a child process. Values are taken in their
// flag.Value string form so generic flags such as log.level round-trip.
func ChildEnv(ctx *cli.Context) []string {
	var env []string
	for _, f := range childFlags {
		name := f.Names()[0]
		if !ctx.IsSet(name) {
			continue
		}
		ef, ok := f.(envFlag)
		if !ok || len(ef.GetEnvVars()) == 0 {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", ef.GetEnvVars()[0], ctx.String(name)))
	}
	return env
}
