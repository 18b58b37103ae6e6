package runner

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

var _ types.Listener = (*Notifier)(nil)

// Notifier is the notification sink running tasks report to. It fans every
// event out to its listeners in registration order, one event at a time, so
// concurrent pool workers never interleave inside a listener.
type Notifier struct {
	mu        sync.Mutex
	listeners []types.Listener
}

// NewNotifier creates a Notifier with the given listeners
func NewNotifier(listeners ...types.Listener) *Notifier {
	n := &Notifier{}
	for _, l := range listeners {
		n.AddListener(l)
	}
	return n
}

// AddListener registers a listener. Nil listeners are ignored.
func (n *Notifier) AddListener(l types.Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// With returns a new Notifier that notifies extra first and then every
// listener of n. n itself is not modified.
func (n *Notifier) With(extra ...types.Listener) *Notifier {
	out := NewNotifier(extra...)
	if n == nil {
		return out
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out.listeners = append(out.listeners, n.listeners...)
	return out
}

func (n *Notifier) RunStarted(units []types.TestUnit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners {
		l.RunStarted(units)
	}
}

func (n *Notifier) TestStarted(unit, method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners {
		l.TestStarted(unit, method)
	}
}

func (n *Notifier) TestFinished(event types.TestEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners {
		l.TestFinished(event)
	}
}

func (n *Notifier) RunFinished(result types.RunResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.listeners {
		l.RunFinished(result)
	}
}
