package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

const (
	MetricsNamespace = "launcher"
)

// Child process outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeTimeout    = "timeout"
	OutcomeStartError = "start_error"
)

var (
	Debug                bool = false
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusIgnore}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of finished test methods",
	}, []string{
		"unit",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of individual test methods",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{
		"unit",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of completed engine runs",
	}, []string{
		"parallel_mode",
		"result",
	})

	runTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests",
		Help:      "Counted outcomes of the last run",
	}, []string{
		"run_id",
		"kind",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last run",
	}, []string{
		"run_id",
	})

	childProcessesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "child_processes_total",
		Help:      "Count of launched child processes by outcome",
	}, []string{
		"isolation",
		"outcome",
	})

	childProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "child_process_duration_seconds",
		Help:      "Wall time of child processes",
		Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
	}, []string{
		"isolation",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTest records a single finished test method
func RecordTest(unit string, result types.TestStatus, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordTest - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"unit", unit,
			"result", result)
	}
	testsTotal.WithLabelValues(unit, string(result)).Inc()
	testDuration.WithLabelValues(unit).Observe(duration.Seconds())
}

// RecordRun records the counted outcome of one engine run
func RecordRun(runID string, mode types.ParallelMode, result types.RunResult) {
	outcome := "pass"
	if !result.WasSuccessful() {
		outcome = "fail"
	}
	runsTotal.WithLabelValues(mode.String(), outcome).Inc()
	runTests.WithLabelValues(runID, "run").Set(float64(result.RunCount))
	runTests.WithLabelValues(runID, "failed").Set(float64(result.FailureCount))
	runTests.WithLabelValues(runID, "ignored").Set(float64(result.IgnoreCount))
	runDuration.WithLabelValues(runID).Set((time.Duration(result.ElapsedMillis) * time.Millisecond).Seconds())
}

// RecordChildProcess records a finished (or failed to start) child process
func RecordChildProcess(isolation types.IsolationMode, outcome string, duration time.Duration) {
	childProcessesTotal.WithLabelValues(string(isolation), outcome).Inc()
	if outcome != OutcomeStartError {
		childProcessDuration.WithLabelValues(string(isolation)).Observe(duration.Seconds())
	}
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
