package launcher

import (
	"github.com/ethereum-optimism/infra/op-launcher/metrics"
	"github.com/ethereum-optimism/infra/op-launcher/orchestrator"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// MetricsReporter is responsible for reporting metrics from run reports.
type MetricsReporter interface {
	ReportResults(mode types.ParallelMode, report *orchestrator.Report)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records the summed child results under the report's run ID.
// Child processes that failed without printing a summary are counted by the
// orchestrator's child process metrics instead.
func (r *DefaultMetricsReporter) ReportResults(mode types.ParallelMode, report *orchestrator.Report) {
	metrics.RecordRun(report.RunID, mode, report.Totals())
}
