package listeners

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

type logListener struct {
	log log.Logger
}

func newLogListener(opts Options) (types.Listener, error) {
	return &logListener{log: opts.Log.New("listener", Log, "runID", opts.RunID)}, nil
}

func (l *logListener) RunStarted(units []types.TestUnit) {
	l.log.Info("Run started", "units", len(units))
}

func (l *logListener) TestStarted(unit, method string) {
	l.log.Debug("Test started", "unit", unit, "method", method)
}

func (l *logListener) TestFinished(event types.TestEvent) {
	switch event.Status {
	case types.TestStatusFail:
		l.log.Error("Test failed", "test", event.TestKey(), "duration", event.Duration, "err", event.Error)
	case types.TestStatusIgnore:
		l.log.Info("Test ignored", "test", event.TestKey())
	default:
		l.log.Info("Test passed", "test", event.TestKey(), "duration", event.Duration)
	}
}

func (l *logListener) RunFinished(result types.RunResult) {
	l.log.Info("Run finished",
		"run", result.RunCount,
		"failures", result.FailureCount,
		"ignored", result.IgnoreCount,
		"elapsedMs", result.ElapsedMillis)
}
