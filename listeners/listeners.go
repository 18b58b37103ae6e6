// Package listeners builds the run listeners selectable by name on the
// command line and in the payload.
package listeners

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/runner"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// Canonical listener names
const (
	Log      = "log"
	Metrics  = "metrics"
	Progress = "progress"
	Events   = "events"
)

// EventsDirEnvVar overrides the directory the events listener writes to
const EventsDirEnvVar = "OP_LAUNCHER_EVENTS_DIR"

// DefaultEventsDir is used when EventsDirEnvVar is unset
const DefaultEventsDir = "logs"

// ErrUnknownListener is wrapped when a listener name is not registered
var ErrUnknownListener = errors.New("unknown listener")

// Options carries what the listener factories need to know about the run
type Options struct {
	Log              log.Logger
	RunID            string
	ParallelMode     types.ParallelMode
	EventsDir        string
	ProgressInterval time.Duration
}

// Factory constructs a listener. Listeners that hold resources also
// implement io.Closer.
type Factory func(opts Options) (types.Listener, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		Log:      newLogListener,
		Metrics:  newMetricsListener,
		Progress: newProgressListener,
		Events:   newEventsListener,
	}
)

// Register adds a named factory. Registering a taken name fails.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.New("listener name and factory are required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("listener %s already registered", name)
	}
	factories[name] = f
	return nil
}

// Names returns the registered listener names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set is a group of constructed listeners
type Set struct {
	listeners []types.Listener
	closers   []io.Closer
}

// Build constructs the named listeners in order. A name that is not
// registered, or a factory that fails, is a runner.UnitResolutionError of
// kind "listener"; listeners built so far are closed.
func Build(names []string, opts Options) (*Set, error) {
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	if opts.EventsDir == "" {
		opts.EventsDir = os.Getenv(EventsDirEnvVar)
	}
	if opts.EventsDir == "" {
		opts.EventsDir = DefaultEventsDir
	}

	s := &Set{}
	for _, name := range names {
		mu.RLock()
		factory, ok := factories[name]
		mu.RUnlock()

		var l types.Listener
		var err error
		if !ok {
			err = ErrUnknownListener
		} else {
			l, err = factory(opts)
		}
		if err != nil {
			_ = s.Close()
			return nil, &runner.UnitResolutionError{Kind: "listener", Name: name, Err: err}
		}

		s.listeners = append(s.listeners, l)
		if c, ok := l.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
	return s, nil
}

// Listeners returns the constructed listeners in build order
func (s *Set) Listeners() []types.Listener {
	return append([]types.Listener(nil), s.listeners...)
}

// Close releases listener resources. It returns the first error.
func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
