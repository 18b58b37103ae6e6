package listeners

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

const defaultProgressInterval = 30 * time.Second

// progressListener periodically logs how far the run has got and which
// tests have been running the longest.
type progressListener struct {
	logger log.Logger
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
	mu     sync.RWMutex

	totalUnits     int
	completedTests int
	failedTests    int
	runStartTime   time.Time

	// test key -> start time
	runningTests map[string]time.Time
}

func newProgressListener(opts Options) (types.Listener, error) {
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	p := &progressListener{
		logger:       opts.Log.New("listener", Progress),
		ticker:       time.NewTicker(interval),
		stopCh:       make(chan struct{}),
		runningTests: make(map[string]time.Time),
	}
	go p.progressReporter()
	return p, nil
}

func (p *progressListener) RunStarted(units []types.TestUnit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalUnits = len(units)
	p.completedTests = 0
	p.failedTests = 0
	p.runStartTime = time.Now()
	p.runningTests = make(map[string]time.Time)
}

func (p *progressListener) TestStarted(unit, method string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runningTests[types.TestEvent{Unit: unit, Method: method}.TestKey()] = time.Now()
}

func (p *progressListener) TestFinished(event types.TestEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.runningTests, event.TestKey())
	p.completedTests++
	if event.Status == types.TestStatusFail {
		p.failedTests++
	}
}

func (p *progressListener) RunFinished(result types.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := time.Since(p.runStartTime).Truncate(time.Second)
	p.logger.Info("Completed run", "units", p.totalUnits, "completed", p.completedTests, "failed", p.failedTests, "duration", duration)
	p.runningTests = make(map[string]time.Time)
}

func (p *progressListener) progressReporter() {
	for {
		select {
		case <-p.ticker.C:
			p.reportProgress()
		case <-p.stopCh:
			return
		}
	}
}

func (p *progressListener) reportProgress() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.logger.Info("Progress update",
		"units", p.totalUnits,
		"completed", p.completedTests,
		"failed", p.failedTests,
		"numRunning", len(p.runningTests),
		"longestRunning", formatRunningTests(p.runningTests, 3, time.Now()),
	)
}

// Close stops the periodic report
func (p *progressListener) Close() error {
	p.once.Do(func() {
		p.ticker.Stop()
		close(p.stopCh)
	})
	return nil
}

// formatRunningTests lists up to maxShow tests, longest running first
func formatRunningTests(runningTests map[string]time.Time, maxShow int, now time.Time) string {
	if len(runningTests) == 0 {
		return ""
	}

	type runningTest struct {
		name     string
		duration time.Duration
	}

	running := make([]runningTest, 0, len(runningTests))
	for name, startTime := range runningTests {
		running = append(running, runningTest{name: name, duration: now.Sub(startTime)})
	}
	sort.Slice(running, func(i, j int) bool {
		if running[i].duration == running[j].duration {
			return running[i].name < running[j].name
		}
		return running[i].duration > running[j].duration
	})

	var parts []string
	for i, test := range running {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", test.name, test.duration.Truncate(time.Second)))
	}
	if len(running) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(running)-maxShow))
	}
	return strings.Join(parts, ", ")
}
