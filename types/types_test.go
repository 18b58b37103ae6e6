package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoolKind(t *testing.T) {
	tests := map[string]PoolKind{
		"cached":     PoolCached,
		"FIXED":      PoolFixed,
		" single ":   PoolSingle,
		"forkjoin":   PoolForkJoin,
		"default":    PoolDefault,
		"":           PoolDefault,
		"threadpool": PoolDefault,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePoolKind(in), "input %q", in)
	}
}

func TestParseParallelMode(t *testing.T) {
	assert.Equal(t, ParallelClasses, ParseParallelMode("classes"))
	assert.Equal(t, ParallelMethods, ParseParallelMode("Methods"))
	assert.Equal(t, ParallelNone, ParseParallelMode("none"))
	assert.Equal(t, ParallelNone, ParseParallelMode("both"))
	assert.Equal(t, ParallelNone, ParseParallelMode(""))
}

func TestPoolPolicy(t *testing.T) {
	assert.Equal(t, 1, PoolPolicy{Kind: PoolFixed, Threads: 0}.EffectiveThreads())
	assert.Equal(t, 1, PoolPolicy{Kind: PoolFixed, Threads: -3}.EffectiveThreads())
	assert.Equal(t, 4, PoolPolicy{Kind: PoolFixed, Threads: 4}.EffectiveThreads())

	assert.Equal(t, "fixed(2)", PoolPolicy{Kind: PoolFixed, Threads: 2}.String())
	assert.Equal(t, "forkjoin(1)", PoolPolicy{Kind: PoolForkJoin}.String())
	assert.Equal(t, "cached", PoolPolicy{Kind: PoolCached, Threads: 9}.String())
	assert.Equal(t, "default", PoolPolicy{}.String())
}

func TestIsolationMode_IsValid(t *testing.T) {
	assert.True(t, IsolationBatch.IsValid())
	assert.True(t, IsolationSequential.IsValid())
	assert.False(t, IsolationMode("parallel").IsValid())
}

func TestRunConfiguration_Sequential(t *testing.T) {
	cfg := RunConfiguration{
		ParallelMode: ParallelMethods,
		Pool:         PoolPolicy{Kind: PoolFixed, Threads: 3},
		Listeners:    []string{"log"},
	}
	seq := cfg.Sequential()
	seq.Listeners[0] = "events"

	assert.Equal(t, ParallelNone, seq.ParallelMode)
	assert.Equal(t, cfg.Pool, seq.Pool)
	assert.Equal(t, ParallelMethods, cfg.ParallelMode)
	assert.Equal(t, "log", cfg.Listeners[0])
}

func TestParseUnits(t *testing.T) {
	units, err := ParseUnits(" a.B , ,c.D,e ")
	require.NoError(t, err)
	assert.Equal(t, []TestUnit{"a.B", "c.D", "e"}, units)
	assert.Equal(t, "a.B,c.D,e", JoinUnits(units))

	units, err = ParseUnits("")
	require.NoError(t, err)
	assert.Empty(t, units)

	_, err = ParseUnits("a,b,a")
	assert.Error(t, err)
}

func TestRunResult(t *testing.T) {
	a := RunResult{RunCount: 3, FailureCount: 1, IgnoreCount: 0, ElapsedMillis: 1200}
	b := RunResult{RunCount: 4, FailureCount: 0, IgnoreCount: 2, ElapsedMillis: 300}

	sum := a.Add(b)
	assert.Equal(t, RunResult{RunCount: 7, FailureCount: 1, IgnoreCount: 2, ElapsedMillis: 1500}, sum)
	assert.False(t, sum.WasSuccessful())
	assert.True(t, b.WasSuccessful())
}

func TestTestEvent_TestKey(t *testing.T) {
	assert.Equal(t, "pkg.Unit::method", TestEvent{Unit: "pkg.Unit", Method: "method"}.TestKey())
	assert.Equal(t, "pkg.Unit", TestEvent{Unit: "pkg.Unit"}.TestKey())
}
