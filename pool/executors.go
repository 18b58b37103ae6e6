package pool

import (
	"runtime"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// cachedExecutor starts one goroutine per task with no upper bound. Idle
// goroutines are reclaimed by the runtime.
type cachedExecutor struct {
	group errgroup.Group
}

func newCachedExecutor() *cachedExecutor {
	return &cachedExecutor{}
}

func (e *cachedExecutor) execute(task func()) {
	e.group.Go(func() error {
		task()
		return nil
	})
}

func (e *cachedExecutor) wait() {
	_ = e.group.Wait()
}

func (e *cachedExecutor) shutdown() {}

// queueExecutor runs tasks on a fixed number of workers reading from an
// unbounded FIFO queue, so submission never blocks.
type queueExecutor struct {
	log     log.Logger
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	pending sync.WaitGroup
}

func newQueueExecutor(workers int, logger log.Logger) *queueExecutor {
	e := &queueExecutor{log: logger}
	e.cond = sync.NewCond(&e.mu)
	for i := 0; i < workers; i++ {
		go e.worker(i)
	}
	return e
}

func (e *queueExecutor) execute(task func()) {
	e.pending.Add(1)
	e.mu.Lock()
	e.queue = append(e.queue, task)
	e.mu.Unlock()
	e.cond.Signal()
}

func (e *queueExecutor) worker(id int) {
	e.log.Trace("Worker starting", "worker", id)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopped {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// stopped and nothing left to run
			e.mu.Unlock()
			e.log.Trace("Worker exiting", "worker", id)
			return
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		task()
		e.pending.Done()
	}
}

func (e *queueExecutor) wait() {
	e.pending.Wait()
}

func (e *queueExecutor) shutdown() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// stealingExecutor is an n-way work-stealing scheduler. Submissions are
// spread round-robin over per-worker deques; a worker takes from the head of
// its own deque and, when empty, steals from the tail of the fullest peer.
type stealingExecutor struct {
	log     log.Logger
	mu      sync.Mutex
	cond    *sync.Cond
	deques  [][]func()
	next    int
	queued  int
	stopped bool
	pending sync.WaitGroup
}

func newStealingExecutor(workers int, logger log.Logger) *stealingExecutor {
	e := &stealingExecutor{
		log:    logger,
		deques: make([][]func(), workers),
	}
	e.cond = sync.NewCond(&e.mu)
	for i := 0; i < workers; i++ {
		go e.worker(i)
	}
	return e
}

func (e *stealingExecutor) execute(task func()) {
	e.pending.Add(1)
	e.mu.Lock()
	e.deques[e.next] = append(e.deques[e.next], task)
	e.next = (e.next + 1) % len(e.deques)
	e.queued++
	e.mu.Unlock()
	e.cond.Broadcast()
}

// take returns the next task for worker id; the caller holds e.mu and
// guarantees e.queued > 0.
func (e *stealingExecutor) take(id int) func() {
	if own := e.deques[id]; len(own) > 0 {
		task := own[0]
		own[0] = nil
		e.deques[id] = own[1:]
		e.queued--
		return task
	}
	victim := -1
	for i, d := range e.deques {
		if i != id && len(d) > 0 && (victim < 0 || len(d) > len(e.deques[victim])) {
			victim = i
		}
	}
	d := e.deques[victim]
	task := d[len(d)-1]
	d[len(d)-1] = nil
	e.deques[victim] = d[:len(d)-1]
	e.queued--
	e.log.Trace("Stole task", "worker", id, "victim", victim)
	return task
}

func (e *stealingExecutor) worker(id int) {
	for {
		e.mu.Lock()
		for e.queued == 0 && !e.stopped {
			e.cond.Wait()
		}
		if e.queued == 0 {
			e.mu.Unlock()
			return
		}
		task := e.take(id)
		e.mu.Unlock()

		task()
		e.pending.Done()
	}
}

func (e *stealingExecutor) wait() {
	e.pending.Wait()
}

func (e *stealingExecutor) shutdown() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

var (
	commonOnce sync.Once
	common     *stealingExecutor
)

// commonPool returns the process-wide work-stealing pool. It lives for the
// whole process and is never shut down.
func commonPool(logger log.Logger) *stealingExecutor {
	commonOnce.Do(func() {
		common = newStealingExecutor(runtime.GOMAXPROCS(0), logger.New("pool", "common"))
	})
	return common
}

// sharedExecutor scopes a handle onto the common pool: waiting covers only
// the tasks executed through this handle.
type sharedExecutor struct {
	pool    *stealingExecutor
	pending sync.WaitGroup
}

func newSharedExecutor(logger log.Logger) *sharedExecutor {
	return &sharedExecutor{pool: commonPool(logger)}
}

func (e *sharedExecutor) execute(task func()) {
	e.pending.Add(1)
	e.pool.execute(func() {
		defer e.pending.Done()
		task()
	})
}

func (e *sharedExecutor) wait() {
	e.pending.Wait()
}

func (e *sharedExecutor) shutdown() {}
