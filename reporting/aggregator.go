// Package reporting accumulates counted test outcomes and renders the
// per-invocation summary line.
package reporting

import (
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

var _ types.Listener = (*Aggregator)(nil)

// Aggregator counts test outcomes. It is safe for concurrent use.
type Aggregator struct {
	types.NoOpListener

	run     atomic.Int64
	failed  atomic.Int64
	ignored atomic.Int64
}

// NewAggregator creates an empty Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// TestFinished implements types.Listener.
func (a *Aggregator) TestFinished(event types.TestEvent) {
	switch event.Status {
	case types.TestStatusPass:
		a.run.Add(1)
	case types.TestStatusIgnore:
		a.ignored.Add(1)
	default:
		a.run.Add(1)
		a.failed.Add(1)
	}
}

// Result snapshots the counters into a RunResult
func (a *Aggregator) Result(elapsed time.Duration) types.RunResult {
	if elapsed < 0 {
		elapsed = 0
	}
	return types.RunResult{
		RunCount:      int(a.run.Load()),
		FailureCount:  int(a.failed.Load()),
		IgnoreCount:   int(a.ignored.Load()),
		ElapsedMillis: elapsed.Milliseconds(),
	}
}
