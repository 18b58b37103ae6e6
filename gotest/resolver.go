// Package gotest resolves Go packages as test units. Each top-level Test
// function in the package's _test.go files is one method, executed through
// go test -json.
package gotest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/logging"
	"github.com/ethereum-optimism/infra/op-launcher/procgroup"
	"github.com/ethereum-optimism/infra/op-launcher/runner"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

var errOutsideModule = errors.New("package outside module")

var _ runner.Resolver = (*Resolver)(nil)

// CommandBuilder creates the command for one go test invocation
type CommandBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd

// Config configures the Resolver
type Config struct {
	WorkDir  string
	GoBinary string
	// Timeout is passed to go test for every method. Zero uses the go test
	// default.
	Timeout time.Duration
	Log     log.Logger
}

// Resolver maps unit names onto Go packages below WorkDir.
type Resolver struct {
	cfg        Config
	log        log.Logger
	cmdBuilder CommandBuilder
}

// NewResolver creates a Resolver for the module rooted at cfg.WorkDir
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.WorkDir == "" {
		return nil, errors.New("work directory cannot be empty")
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = DefaultGoBinary
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	r := &Resolver{cfg: cfg, log: cfg.Log.New("component", "gotest")}
	r.cmdBuilder = r.testCommandContext
	return r, nil
}

// Resolve implements runner.Resolver. Packages outside the module or without
// a directory are reported as runner.ErrUnitNotFound.
func (r *Resolver) Resolve(_ context.Context, name string) (runner.Unit, error) {
	dir, err := PackageDir(name, r.cfg.WorkDir)
	if errors.Is(err, errOutsideModule) {
		return nil, fmt.Errorf("%w: %v", runner.ErrUnitNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: no package directory for %s", runner.ErrUnitNotFound, name)
	}

	methods, err := FindTestFunctions(dir)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Resolved package", "package", name, "tests", len(methods))

	return &packageUnit{resolver: r, pkg: name, methods: methods}, nil
}

func (r *Resolver) testCommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())
	// go test forks the compiled test binary; a cancelled method kills both
	procgroup.Isolate(cmd)
	return cmd
}

func (r *Resolver) buildTestArgs(pkg, method string) []string {
	args := []string{TestCommand, JSONFlag, CountFlag}
	if r.cfg.Timeout > 0 {
		args = append(args, TimeoutFlag, r.cfg.Timeout.String())
	}
	return append(args, RunFlag, fmt.Sprintf("^%s$", regexp.QuoteMeta(method)), pkg)
}

type packageUnit struct {
	resolver *Resolver
	pkg      string
	methods  []string
}

func (u *packageUnit) Name() string { return u.pkg }

func (u *packageUnit) Methods() []string {
	return append([]string(nil), u.methods...)
}

// RunMethod runs a single test function in its own go test process
func (u *packageUnit) RunMethod(ctx context.Context, method string) runner.MethodOutcome {
	r := u.resolver
	cmd := r.cmdBuilder(ctx, r.cfg.GoBinary, r.buildTestArgs(u.pkg, method)...)

	stderr := logging.NewTailBuffer(logging.DefaultTailBytes)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return runner.MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("failed to capture test output: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return runner.MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("failed to run test: %w", err)}
	}

	result := parseEvents(stdout, method)
	runErr := cmd.Wait()

	if result.seen {
		outcome := runner.MethodOutcome{Status: result.status}
		if result.status == types.TestStatusFail {
			outcome.Err = fmt.Errorf("test %s failed:\n%s", method, result.output.Text())
		}
		return outcome
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return runner.MethodOutcome{
				Status: types.TestStatusFail,
				Err:    fmt.Errorf("go test exited with code %d: %s", exitErr.ExitCode(), stderr.Text()),
			}
		}
		return runner.MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("failed to run test: %w", runErr)}
	}
	return runner.MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("test %s reported no result", method)}
}

// TestEvent represents a test event from go test -json output
type TestEvent struct {
	Time    time.Time
	Action  string
	Package string
	Test    string
	Elapsed float64
	Output  string
}

type eventResult struct {
	seen   bool
	status types.TestStatus
	output *logging.TailBuffer
}

// parseEvents consumes a go test -json stream and returns the final status
// reported for the top-level test named method. Lines that are not JSON
// events are ignored.
func parseEvents(r io.Reader, method string) eventResult {
	res := eventResult{output: logging.NewTailBuffer(logging.DefaultTailBytes)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event TestEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.Test != method && !strings.HasPrefix(event.Test, method+"/") {
			continue
		}

		switch event.Action {
		case ActionOutput:
			_, _ = res.output.Write([]byte(event.Output))
		case ActionPass, ActionFail, ActionSkip:
			if event.Test != method {
				continue
			}
			res.seen = true
			res.status = statusFromAction(event.Action)
		}
	}
	// drain so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
	return res
}

func statusFromAction(action string) types.TestStatus {
	switch action {
	case ActionPass:
		return types.TestStatusPass
	case ActionSkip:
		return types.TestStatusIgnore
	default:
		return types.TestStatusFail
	}
}
