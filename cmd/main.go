package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	launcher "github.com/ethereum-optimism/infra/op-launcher"
	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
	"github.com/ethereum-optimism/infra/op-launcher/flags"
	"github.com/ethereum-optimism/infra/op-launcher/orchestrator"
	"github.com/ethereum-optimism/infra/op-launcher/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-launcher"
	app.Usage = "Test unit launcher"
	app.Description = "op-launcher runs Go test units in isolated child processes"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Run the configured test units (default command)",
			Flags:  cliapp.ProtectFlags(flags.Flags),
			Action: cliapp.LifecycleCmd(run),
		},
		{
			Name:      orchestrator.BatchCommand,
			Usage:     "Run every unit named by a payload file in this process",
			ArgsUsage: "[payload]",
			Action:    batchAction,
		},
		{
			Name:      orchestrator.UnitCommand,
			Usage:     "Run a single unit in this process",
			ArgsUsage: "<unit> <listener>",
			Action:    unitAction,
		},
	}
	app.ExitErrHandler = exitErrHandler
	return app
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
}

// exitCode maps an error onto a process exit code. RuntimeError and
// TestFailureError carry their own codes; anything else counts as a test
// failure.
func exitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitcodes.TestFailure
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := launcher.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, launcher.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := launcher.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, launcher.NewRuntimeError(fmt.Errorf("failed to create launcher: %w", err))
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	srvCfg := service.DefaultConfig()
	srvCfg.MetricsEnabled = metricsCfg.Enabled
	srvCfg.MetricsHost = metricsCfg.ListenAddr
	srvCfg.MetricsPort = metricsCfg.ListenPort
	srvCfg.Log = log

	return &withService{Lifecycle: svc, svc: service.New(srvCfg)}, nil
}

// withService runs the healthz and metrics servers for the lifetime of the
// wrapped lifecycle.
type withService struct {
	cliapp.Lifecycle
	svc *service.Service
}

func (w *withService) Start(ctx context.Context) error {
	w.svc.Start(ctx)
	return w.Lifecycle.Start(ctx)
}

func (w *withService) Stop(ctx context.Context) error {
	w.svc.Shutdown()
	return w.Lifecycle.Stop(ctx)
}

// childLogger logs to stderr so stdout carries only the summary line
func childLogger(ctx *cli.Context) log.Logger {
	logger := oplog.NewLogger(os.Stderr, oplog.ReadCLIConfig(ctx))
	oplog.SetGlobalLogHandler(logger.Handler())
	return logger
}

func childOptions(ctx *cli.Context) launcher.ChildOptions {
	return launcher.ChildOptions{
		GoBinary:         ctx.String(flags.GoBinary.Name),
		TestTimeout:      ctx.Duration(flags.TestTimeout.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Log:              childLogger(ctx),
	}
}

func batchAction(ctx *cli.Context) error {
	if ctx.NArg() > 1 {
		return launcher.NewRuntimeError(fmt.Errorf("usage: %s %s [payload]", ctx.App.Name, orchestrator.BatchCommand))
	}
	return launcher.RunBatch(ctx.Context, launcher.BatchOptions{
		ChildOptions: childOptions(ctx),
		PayloadPath:  ctx.Args().First(),
	})
}

func unitAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return launcher.NewRuntimeError(fmt.Errorf("usage: %s %s <unit> <listener>", ctx.App.Name, orchestrator.UnitCommand))
	}
	code, err := launcher.RunUnit(ctx.Context, launcher.UnitOptions{
		ChildOptions: childOptions(ctx),
		Unit:         ctx.Args().Get(0),
		Listener:     ctx.Args().Get(1),
	})
	if err != nil {
		return err
	}
	if code != exitcodes.Success {
		return cli.Exit("", code)
	}
	return nil
}
