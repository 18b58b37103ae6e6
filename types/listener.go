package types

// Listener is notified of test lifecycle events. Notifications may come from
// several pool workers; the runner.Notifier serializes them, so listeners
// registered there need not be thread safe themselves.
type Listener interface {
	RunStarted(units []TestUnit)
	TestStarted(unit, method string)
	TestFinished(event TestEvent)
	RunFinished(result RunResult)
}

// NoOpListener implements Listener with empty methods. Embed it to implement
// only the callbacks you need.
type NoOpListener struct{}

func (NoOpListener) RunStarted(units []TestUnit)     {}
func (NoOpListener) TestStarted(unit, method string) {}
func (NoOpListener) TestFinished(event TestEvent)    {}
func (NoOpListener) RunFinished(result RunResult)    {}
