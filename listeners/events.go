package listeners

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/logging"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// Event kinds written to the events file
const (
	EventRunStarted   = "run_started"
	EventTestStarted  = "test_started"
	EventTestFinished = "test_finished"
	EventRunFinished  = "run_finished"
)

// EventRecord is one line of the events file
type EventRecord struct {
	Time       time.Time        `json:"time"`
	RunID      string           `json:"run_id"`
	Event      string           `json:"event"`
	Units      []types.TestUnit `json:"units,omitempty"`
	Unit       string           `json:"unit,omitempty"`
	Method     string           `json:"method,omitempty"`
	Status     types.TestStatus `json:"status,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
	Result     *types.RunResult `json:"result,omitempty"`
}

// eventsListener appends one JSON line per event to <dir>/<run id>.jsonl
type eventsListener struct {
	runID string
	file  *logging.AsyncFile
	log   log.Logger
	now   func() time.Time
}

// EventsFile returns the events file path for a run
func EventsFile(dir, runID string) string {
	return filepath.Join(dir, logging.SafeFilename(runID)+".jsonl")
}

func newEventsListener(opts Options) (types.Listener, error) {
	logger := opts.Log.New("listener", Events)
	file, err := logging.NewAsyncFile(EventsFile(opts.EventsDir, opts.RunID), logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Writing events", "file", file.Name())
	return &eventsListener{runID: opts.RunID, file: file, log: logger, now: time.Now}, nil
}

func (e *eventsListener) write(rec EventRecord) {
	rec.Time = e.now().UTC()
	rec.RunID = e.runID
	data, err := json.Marshal(rec)
	if err != nil {
		e.log.Error("Failed to encode event", "event", rec.Event, "err", err)
		return
	}
	if err := e.file.Write(append(data, '\n')); err != nil {
		e.log.Warn("Dropped event", "event", rec.Event, "err", err)
	}
}

func (e *eventsListener) RunStarted(units []types.TestUnit) {
	e.write(EventRecord{Event: EventRunStarted, Units: units})
}

func (e *eventsListener) TestStarted(unit, method string) {
	e.write(EventRecord{Event: EventTestStarted, Unit: unit, Method: method})
}

func (e *eventsListener) TestFinished(event types.TestEvent) {
	rec := EventRecord{
		Event:      EventTestFinished,
		Unit:       event.Unit,
		Method:     event.Method,
		Status:     event.Status,
		DurationMs: event.Duration.Milliseconds(),
	}
	if event.Error != nil {
		rec.Error = event.Error.Error()
	}
	e.write(rec)
}

func (e *eventsListener) RunFinished(result types.RunResult) {
	e.write(EventRecord{Event: EventRunFinished, Result: &result})
}

// Close flushes pending events
func (e *eventsListener) Close() error {
	return e.file.Close()
}
