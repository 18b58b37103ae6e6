package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-launcher/payload"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

type launchCall struct {
	args    []string
	payload *payload.Payload
}

// fakeLauncher answers per unit (or per subcommand for batch)
type fakeLauncher struct {
	mu      sync.Mutex
	calls   []launchCall
	results map[string]ProcessResult
	errs    map[string]error
}

func (f *fakeLauncher) Launch(ctx context.Context, args []string) (ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := launchCall{args: append([]string(nil), args...)}
	if args[0] == BatchCommand {
		p, err := payload.Load(args[1])
		if err == nil {
			call.payload = &p
		}
	}
	f.calls = append(f.calls, call)

	if err := ctx.Err(); err != nil {
		return ProcessResult{}, err
	}
	key := args[0]
	if args[0] == UnitCommand {
		key = args[1]
	}
	if err, ok := f.errs[key]; ok {
		return ProcessResult{ExitCode: -1}, err
	}
	return f.results[key], nil
}

func (f *fakeLauncher) launchedUnits() []string {
	var units []string
	for _, c := range f.calls {
		if c.args[0] == UnitCommand {
			units = append(units, c.args[1])
		}
	}
	return units
}

func summary(run, failures int) string {
	return reporting.FormatSummary(types.RunResult{RunCount: run, FailureCount: failures})
}

func passing() ProcessResult {
	return ProcessResult{ExitCode: 0, Output: summary(2, 0), Duration: time.Second}
}

func failing() ProcessResult {
	return ProcessResult{ExitCode: 1, Output: summary(2, 1), Duration: time.Second}
}

var abc = []types.TestUnit{"A", "B", "C"}

func newTestOrchestrator(t *testing.T, cfg types.RunConfiguration, l ProcessLauncher) *Orchestrator {
	t.Helper()
	o, err := New(cfg, l, t.TempDir(), log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)
	return o
}

func TestSequential_HaltOnFailure(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{"A": passing(), "B": failing(), "C": passing()}}
	o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential, HaltOnFailure: true}, l)

	report, err := o.Run(context.Background(), abc)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, l.launchedUnits())
	assert.True(t, report.Halted)
	assert.Equal(t, []types.TestUnit{"C"}, report.Skipped)
	assert.True(t, report.Failed())
	require.Len(t, report.Units, 2)
	assert.False(t, report.Units[0].Failed())
	assert.True(t, report.Units[1].Failed())
	assert.Equal(t, types.RunResult{RunCount: 4, FailureCount: 1}, report.Totals())
	assert.NotEmpty(t, report.RunID)
}

func TestSequential_NoHaltRunsEverything(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{"A": passing(), "B": failing(), "C": passing()}}
	o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential}, l)

	report, err := o.Run(context.Background(), abc)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, l.launchedUnits())
	assert.False(t, report.Halted)
	assert.Empty(t, report.Skipped)
	assert.True(t, report.Failed())
}

func TestSequential_PassesListener(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{"A": passing()}}

	o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential}, l)
	_, err := o.Run(context.Background(), []types.TestUnit{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{UnitCommand, "A", DefaultListener}, l.calls[0].args)

	o = newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential, Listeners: []string{"events"}}, l)
	_, err = o.Run(context.Background(), []types.TestUnit{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{UnitCommand, "A", "events"}, l.calls[1].args)
}

func TestSequential_TimeoutCountsAsFailure(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{
		"A": {ExitCode: -1, TimedOut: true},
		"B": passing(),
	}}
	o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential, HaltOnFailure: true, FailOnError: true}, l)

	report, err := o.Run(context.Background(), []types.TestUnit{"A", "B"})
	require.NoError(t, err, "a timeout is a test failure, not an infrastructure failure")
	assert.True(t, report.Units[0].Failed())
	assert.False(t, report.Units[0].Infrastructure())
	assert.True(t, report.Halted)
	assert.Equal(t, []string{"A"}, l.launchedUnits())
}

func TestSequential_FailOnError(t *testing.T) {
	tests := []struct {
		name        string
		failOnError bool
		results     map[string]ProcessResult
		errs        map[string]error
		wantErr     bool
		wantUnits   []string
	}{
		{
			name:        "runtime error exit aborts",
			failOnError: true,
			results:     map[string]ProcessResult{"A": passing(), "B": {ExitCode: 2}, "C": passing()},
			wantErr:     true,
			wantUnits:   []string{"A", "B"},
		},
		{
			name:        "runtime error exit continues without fail on error",
			failOnError: false,
			results:     map[string]ProcessResult{"A": passing(), "B": {ExitCode: 2}, "C": passing()},
			wantUnits:   []string{"A", "B", "C"},
		},
		{
			name:        "start failure aborts",
			failOnError: true,
			results:     map[string]ProcessResult{"A": passing(), "C": passing()},
			errs:        map[string]error{"B": errors.New("exec format error")},
			wantErr:     true,
			wantUnits:   []string{"A", "B"},
		},
		{
			name:      "start failure continues without fail on error",
			results:   map[string]ProcessResult{"A": passing(), "C": passing()},
			errs:      map[string]error{"B": errors.New("exec format error")},
			wantUnits: []string{"A", "B", "C"},
		},
		{
			name:        "test failure does not abort",
			failOnError: true,
			results:     map[string]ProcessResult{"A": passing(), "B": failing(), "C": passing()},
			wantUnits:   []string{"A", "B", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeLauncher{results: tt.results, errs: tt.errs}
			o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential, FailOnError: tt.failOnError}, l)

			report, err := o.Run(context.Background(), abc)
			assert.Equal(t, tt.wantUnits, l.launchedUnits())
			assert.True(t, report.Failed())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var childErr *ChildProcessError
			require.ErrorAs(t, err, &childErr)
			assert.True(t, childErr.Infrastructure)
			assert.Equal(t, []types.TestUnit{"B"}, childErr.Units)
		})
	}
}

func TestBatch_WritesPayloadAndParsesSummary(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{BatchCommand: {ExitCode: 0, Output: "noise\n" + summary(7, 2)}}}
	cfg := types.RunConfiguration{
		Isolation:    types.IsolationBatch,
		ParallelMode: types.ParallelMethods,
		Pool:         types.PoolPolicy{Kind: types.PoolFixed, Threads: 3},
		PoolSet:      true,
		Listeners:    []string{"log", "metrics"},
		PrintSummary: true,
	}
	o := newTestOrchestrator(t, cfg, l)

	report, err := o.Run(context.Background(), abc)
	require.NoError(t, err)

	require.Len(t, l.calls, 1)
	call := l.calls[0]
	require.Len(t, call.args, 2)
	assert.Equal(t, BatchCommand, call.args[0])
	require.NotNil(t, call.payload, "payload readable while the child runs")
	assert.Equal(t, payload.FromConfiguration(abc, cfg), *call.payload)

	_, statErr := os.Stat(call.args[1])
	assert.True(t, os.IsNotExist(statErr), "payload removed after the run")

	require.Len(t, report.Units, 1)
	assert.Equal(t, abc, report.Units[0].Units)
	assert.True(t, report.Units[0].HasResult)
	assert.Equal(t, 7, report.Totals().RunCount)
	assert.True(t, report.Failed(), "parsed failures mark the run failed")
}

func TestBatch_ChildFailure(t *testing.T) {
	for _, failOnError := range []bool{false, true} {
		l := &fakeLauncher{results: map[string]ProcessResult{BatchCommand: {ExitCode: 2}}}
		o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationBatch, FailOnError: failOnError}, l)

		report, err := o.Run(context.Background(), abc)
		assert.True(t, report.Failed())
		if failOnError {
			assert.True(t, IsChildProcessError(err))
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestRun_Interrupted(t *testing.T) {
	l := &fakeLauncher{results: map[string]ProcessResult{"A": passing(), "B": passing()}}
	o := newTestOrchestrator(t, types.RunConfiguration{Isolation: types.IsolationSequential}, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx, []types.TestUnit{"A", "B"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, l.launchedUnits())
}

func TestNew_Validation(t *testing.T) {
	l := &fakeLauncher{}
	_, err := New(types.RunConfiguration{Isolation: types.IsolationBatch}, nil, "", nil)
	assert.Error(t, err)
	_, err = New(types.RunConfiguration{Isolation: "parallel"}, l, "", nil)
	assert.Error(t, err)
	_, err = New(types.RunConfiguration{Isolation: types.IsolationSequential, Listeners: []string{"log", "events"}}, l, "", nil)
	assert.Error(t, err)
	_, err = New(types.RunConfiguration{Isolation: types.IsolationBatch, Listeners: []string{"log", "events"}}, l, "", nil)
	assert.NoError(t, err)
}

func TestChildProcessError_Message(t *testing.T) {
	assert.Equal(t, "child process for A timed out", (&ChildProcessError{Units: []types.TestUnit{"A"}, TimedOut: true}).Error())
	assert.Equal(t, "child process for A,B exited with code 2", (&ChildProcessError{Units: []types.TestUnit{"A", "B"}, ExitCode: 2}).Error())

	cause := errors.New("no such file")
	err := &ChildProcessError{Units: []types.TestUnit{"A"}, Err: cause}
	assert.ErrorIs(t, err, cause)
}
