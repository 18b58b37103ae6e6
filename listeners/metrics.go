package listeners

import (
	"github.com/ethereum-optimism/infra/op-launcher/metrics"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

type metricsListener struct {
	types.NoOpListener
	runID string
	mode  types.ParallelMode
}

func newMetricsListener(opts Options) (types.Listener, error) {
	return &metricsListener{runID: opts.RunID, mode: opts.ParallelMode}, nil
}

func (m *metricsListener) TestFinished(event types.TestEvent) {
	metrics.RecordTest(event.Unit, event.Status, event.Duration)
}

func (m *metricsListener) RunFinished(result types.RunResult) {
	metrics.RecordRun(m.runID, m.mode, result)
}
