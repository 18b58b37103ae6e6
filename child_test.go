package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-launcher/exitcodes"
	"github.com/ethereum-optimism/infra/op-launcher/payload"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/infra/op-launcher/runner"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

type testCatalog struct {
	*runner.Catalog
	calls atomic.Int32
}

func newTestCatalog(t *testing.T) *testCatalog {
	t.Helper()
	c := &testCatalog{Catalog: runner.NewCatalog()}
	pass := func(context.Context) error {
		c.calls.Add(1)
		return nil
	}
	fail := func(context.Context) error {
		c.calls.Add(1)
		return errors.New("assertion failed")
	}
	c.MustRegister("suite.Passing",
		runner.Method{Name: "TestOne", Fn: pass},
		runner.Method{Name: "TestTwo", Fn: pass},
		runner.Method{Name: "TestLater", Ignore: true},
	)
	c.MustRegister("suite.Failing",
		runner.Method{Name: "TestBroken", Fn: fail},
	)
	return c
}

func childOptions(resolver runner.Resolver, out *bytes.Buffer) ChildOptions {
	return ChildOptions{
		WorkDir:  ".",
		Resolver: resolver,
		Stdout:   out,
		Log:      log.NewLogger(log.DiscardHandler()),
	}
}

func writePayload(t *testing.T, p payload.Payload) string {
	t.Helper()
	path, err := payload.WriteTemp(t.TempDir(), p)
	require.NoError(t, err)
	return path
}

func TestRunBatch(t *testing.T) {
	catalog := newTestCatalog(t)
	var out bytes.Buffer
	path := writePayload(t, payload.Payload{
		Units:        []types.TestUnit{"suite.Passing", "suite.Failing"},
		Listeners:    []string{"log"},
		PrintSummary: true,
		ParallelMode: types.ParallelMethods,
		Pool:         types.PoolPolicy{Kind: types.PoolFixed, Threads: 2},
		PoolSet:      true,
	})

	err := RunBatch(context.Background(), BatchOptions{
		ChildOptions: childOptions(catalog, &out),
		PayloadPath:  path,
	})
	require.NoError(t, err, "test failures are not an error for the batch command")

	result, ok := reporting.ParseSummary(out.String())
	require.True(t, ok, "summary line expected in %q", out.String())
	assert.Equal(t, 3, result.RunCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, 1, result.IgnoreCount)
	assert.EqualValues(t, 3, catalog.calls.Load())
}

func TestRunBatch_NoSummary(t *testing.T) {
	catalog := newTestCatalog(t)
	var out bytes.Buffer
	path := writePayload(t, payload.Payload{Units: []types.TestUnit{"suite.Passing"}})

	err := RunBatch(context.Background(), BatchOptions{
		ChildOptions: childOptions(catalog, &out),
		PayloadPath:  path,
	})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.EqualValues(t, 2, catalog.calls.Load())
}

func TestRunBatch_MissingTestClasses(t *testing.T) {
	catalog := newTestCatalog(t)
	path := filepath.Join(t.TempDir(), "launch.properties")
	require.NoError(t, os.WriteFile(path, []byte("printsummary=true\n"), 0o644))

	var out bytes.Buffer
	err := RunBatch(context.Background(), BatchOptions{
		ChildOptions: childOptions(catalog, &out),
		PayloadPath:  path,
	})
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.ErrorIs(t, err, payload.ErrConfigurationMissing)
	assert.Zero(t, catalog.calls.Load())
	assert.Empty(t, out.String())
}

func TestRunBatch_ResolutionFailures(t *testing.T) {
	tests := []struct {
		name     string
		payload  payload.Payload
		wantKind string
	}{
		{
			name:     "unknown unit",
			payload:  payload.Payload{Units: []types.TestUnit{"suite.Passing", "suite.Missing"}, PrintSummary: true},
			wantKind: "unit",
		},
		{
			name:     "unknown listener",
			payload:  payload.Payload{Units: []types.TestUnit{"suite.Passing"}, Listeners: []string{"carrier-pigeon"}, PrintSummary: true},
			wantKind: "listener",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newTestCatalog(t)
			var out bytes.Buffer
			err := RunBatch(context.Background(), BatchOptions{
				ChildOptions: childOptions(catalog, &out),
				PayloadPath:  writePayload(t, tt.payload),
			})
			require.Error(t, err)
			assert.True(t, IsRuntimeError(err))

			var resErr *runner.UnitResolutionError
			require.True(t, errors.As(err, &resErr))
			assert.Equal(t, tt.wantKind, resErr.Kind)
			assert.Zero(t, catalog.calls.Load(), "nothing runs when resolution fails")
			assert.Empty(t, out.String())
		})
	}
}

func TestRunUnit(t *testing.T) {
	tests := []struct {
		name        string
		unit        string
		listener    string
		wantCode    int
		wantErr     bool
		wantSummary bool
	}{
		{name: "passing unit", unit: "suite.Passing", listener: "log", wantCode: exitcodes.Success, wantSummary: true},
		{name: "failing unit", unit: "suite.Failing", listener: "log", wantCode: exitcodes.TestFailure, wantSummary: true},
		{name: "unknown unit", unit: "suite.Missing", listener: "log", wantCode: exitcodes.RuntimeErr, wantErr: true},
		{name: "unknown listener", unit: "suite.Passing", listener: "nope", wantCode: exitcodes.RuntimeErr, wantErr: true},
		{name: "missing unit", unit: " ", listener: "log", wantCode: exitcodes.RuntimeErr, wantErr: true},
		{name: "missing listener", unit: "suite.Passing", listener: "", wantCode: exitcodes.RuntimeErr, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newTestCatalog(t)
			var out bytes.Buffer
			code, err := RunUnit(context.Background(), UnitOptions{
				ChildOptions: childOptions(catalog, &out),
				Unit:         tt.unit,
				Listener:     tt.listener,
			})
			assert.Equal(t, tt.wantCode, code)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsRuntimeError(err))
			} else {
				require.NoError(t, err)
			}
			_, ok := reporting.ParseSummary(out.String())
			assert.Equal(t, tt.wantSummary, ok)
		})
	}
}

func TestRunUnit_Interrupted(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	code, err := RunUnit(ctx, UnitOptions{
		ChildOptions: childOptions(catalog, &out),
		Unit:         "suite.Passing",
		Listener:     "log",
	})
	assert.Equal(t, exitcodes.RuntimeErr, code)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
