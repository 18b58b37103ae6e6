package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-launcher/flags"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// newConfigFromArgs runs NewConfig inside a cli app parsing args
func newConfigFromArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"op-launcher"}, args...)))
	return cfg, cfgErr
}

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := newConfigFromArgs(t, "--testdir", dir, "--test", "./pkg/a", "--test", " ./pkg/b ")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.TestDir)
	assert.Equal(t, []types.TestUnit{"./pkg/a", "./pkg/b"}, cfg.Units)
	assert.Equal(t, types.IsolationBatch, cfg.Run.Isolation)
	assert.Equal(t, types.ParallelNone, cfg.Run.ParallelMode)
	assert.False(t, cfg.Run.PoolSet)
	assert.Equal(t, types.PoolDefault, cfg.Run.Pool.Kind)
	assert.True(t, cfg.Run.PrintSummary)
	assert.False(t, cfg.Run.FailOnError)
	assert.False(t, cfg.Run.HaltOnFailure)
	assert.Zero(t, cfg.Run.Timeout)
	assert.Empty(t, cfg.Run.Listeners)
}

func TestNewConfig_RunConfiguration(t *testing.T) {
	cfg, err := newConfigFromArgs(t,
		"--test", "./pkg/a",
		"--isolation", "sequential",
		"--parallel-mode", "methods",
		"--pool-type", "forkjoin",
		"--pool-threads", "4",
		"--listener", "events",
		"--fail-on-error",
		"--halt-on-failure",
		"--timeout", "2m",
	)
	require.NoError(t, err)

	assert.Equal(t, types.IsolationSequential, cfg.Run.Isolation)
	assert.Equal(t, types.ParallelMethods, cfg.Run.ParallelMode)
	assert.True(t, cfg.Run.PoolSet)
	assert.Equal(t, types.PoolPolicy{Kind: types.PoolForkJoin, Threads: 4}, cfg.Run.Pool)
	assert.Equal(t, []string{"events"}, cfg.Run.Listeners)
	assert.True(t, cfg.Run.FailOnError)
	assert.True(t, cfg.Run.HaltOnFailure)
	assert.Equal(t, 2*time.Minute, cfg.Run.Timeout)
}

func TestNewConfig_Inventory(t *testing.T) {
	path := writeInventory(t, `
tests:
  - ./pkg/b
  - name: ./pkg/c
listeners: [progress]
env:
  DEVNET: local
`)

	t.Run("merges units and inventory settings", func(t *testing.T) {
		cfg, err := newConfigFromArgs(t, "--test", "./pkg/a", "--inventory", path)
		require.NoError(t, err)
		assert.Equal(t, []types.TestUnit{"./pkg/a", "./pkg/b", "./pkg/c"}, cfg.Units)
		assert.Equal(t, []string{"progress"}, cfg.Run.Listeners)
		assert.Contains(t, cfg.Env, "DEVNET=local")
	})

	t.Run("listener flag wins", func(t *testing.T) {
		cfg, err := newConfigFromArgs(t, "--inventory", path, "--listener", "log")
		require.NoError(t, err)
		assert.Equal(t, []string{"log"}, cfg.Run.Listeners)
	})

	t.Run("duplicate across sources", func(t *testing.T) {
		_, err := newConfigFromArgs(t, "--test", "./pkg/b", "--inventory", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate test unit")
	})
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no units", args: nil},
		{name: "duplicate test flags", args: []string{"--test", "./a", "--test", "./a"}},
		{name: "invalid isolation", args: []string{"--test", "./a", "--isolation", "forked"}},
		{name: "missing inventory", args: []string{"--inventory", filepath.Join(t.TempDir(), "missing.yaml")}},
		{name: "empty inventory", args: []string{"--inventory", writeInventory(t, "tests: []\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newConfigFromArgs(t, tt.args...)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewConfig_ForwardsChildFlags(t *testing.T) {
	cfg, err := newConfigFromArgs(t, "--test", "./pkg/a", "--go-binary", "/usr/local/go/bin/go")
	require.NoError(t, err)
	assert.Contains(t, cfg.Env, "OP_LAUNCHER_GO_BINARY=/usr/local/go/bin/go")
}

func TestNewConfig_ForwardsLogFlags(t *testing.T) {
	cfg, err := newConfigFromArgs(t, "--test", "./pkg/a", "--log.level", "warn", "--log.format", "json")
	require.NoError(t, err)
	assert.Contains(t, cfg.Env, "OP_LAUNCHER_LOG_LEVEL=WARN")
	assert.Contains(t, cfg.Env, "OP_LAUNCHER_LOG_FORMAT=json")
}
