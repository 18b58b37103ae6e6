// Package pool provides the worker pools the scheduling engine submits test
// tasks to. A pool is created per scheduling scope, used once and drained.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// ErrPoolDrained is returned by Submit once AwaitDrain has been called.
var ErrPoolDrained = errors.New("worker pool is draining")

// Task is a unit of work submitted to a WorkerPool.
type Task func()

// WorkerPool is a scoped unit of concurrency.
type WorkerPool interface {
	// Submit accepts a task for asynchronous execution.
	Submit(task Task) error
	// AwaitDrain stops accepting submissions and blocks until every
	// previously submitted task finished, then releases the pool's workers.
	// Cancelling ctx interrupts the wait; the interruption is logged and the
	// pool is treated as drained.
	AwaitDrain(ctx context.Context)
}

// executor runs admitted tasks on behalf of a workerPool
type executor interface {
	execute(task func())
	// wait blocks until every executed task returned
	wait()
	// shutdown releases the workers and must not block
	shutdown()
}

var _ WorkerPool = (*workerPool)(nil)

type workerPool struct {
	name string
	log  log.Logger
	exec executor

	mu       sync.Mutex
	draining bool
	drained  chan struct{}
	once     sync.Once
}

// New creates a worker pool for the given policy. Unknown kinds resolve to
// the shared default pool and the thread count is clamped to at least one.
func New(policy types.PoolPolicy, logger log.Logger) WorkerPool {
	if logger == nil {
		logger = log.Root()
	}
	threads := policy.EffectiveThreads()
	kind := types.ParsePoolKind(string(policy.Kind))

	var exec executor
	switch kind {
	case types.PoolCached:
		exec = newCachedExecutor()
	case types.PoolFixed:
		exec = newQueueExecutor(threads, logger)
	case types.PoolSingle:
		exec = newQueueExecutor(1, logger)
	case types.PoolForkJoin:
		exec = newStealingExecutor(threads, logger)
	default:
		exec = newSharedExecutor(logger)
	}

	name := types.PoolPolicy{Kind: kind, Threads: threads}.String()
	logger.Debug("Created worker pool", "pool", name)
	return &workerPool{
		name:    name,
		log:     logger.New("pool", name),
		exec:    exec,
		drained: make(chan struct{}),
	}
}

// Submit implements WorkerPool.
func (p *workerPool) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return ErrPoolDrained
	}
	p.exec.execute(func() { runTask(p.log, task) })
	return nil
}

// AwaitDrain implements WorkerPool.
func (p *workerPool) AwaitDrain(ctx context.Context) {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	p.once.Do(func() {
		go func() {
			p.exec.wait()
			close(p.drained)
		}()
	})

	select {
	case <-p.drained:
		p.log.Debug("Worker pool drained")
	case <-ctx.Done():
		p.log.Warn("Interrupted while draining worker pool, treating it as drained", "err", ctx.Err())
	}
	p.exec.shutdown()
}

// runTask executes a task, converting a panic into a log line so a worker
// survives it.
func runTask(logger log.Logger, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in worker pool task", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
