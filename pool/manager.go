package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/cpool/internal/cpu"
	"github.com/utkarsh5026/cpool/internal/scheduler"
)

// State is the lifecycle position of a Manager.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// WorkerState is the loop position of a single worker.
type WorkerState = scheduler.WorkerState

const (
	WorkerStarting   = scheduler.WorkerStarting
	WorkerWaiting    = scheduler.WorkerWaiting
	WorkerExecuting  = scheduler.WorkerExecuting
	WorkerTerminated = scheduler.WorkerTerminated
)

// Stats is a point-in-time snapshot of a Manager.
//
// Once the manager has stopped, every submitted task is accounted for:
// Submitted == Completed + Failed + Discarded.
type Stats struct {
	Workers int
	Busy    int
	Queued  int

	Submitted uint64
	Completed uint64
	Failed    uint64
	Discarded uint64
	Rejected  uint64
}

// Manager owns a fixed set of workers and the single queue they drain.
//
// A Manager is created stopped-before-start: tasks may be dispatched right
// away and run once Start returns. Stop lets in-flight tasks finish and fails
// every task still queued with ErrPoolStopped.
type Manager struct {
	cfg     *config
	log     *zap.Logger
	queue   *scheduler.Queue
	metrics *metrics

	lifecycle sync.Mutex
	state     atomic.Int32
	crew      atomic.Pointer[crew]

	ctx    context.Context
	cancel context.CancelFunc

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
	rejected  atomic.Uint64
	busy      atomic.Int64
}

// crew is the worker set of a started manager. It holds no reference back to
// the Manager, so idle workers do not keep an abandoned manager reachable.
type crew struct {
	group   errgroup.Group
	workers []*scheduler.Worker
}

// NewManager creates a manager in the Created state. No goroutines run until
// Start.
func NewManager(opts ...Option) *Manager {
	cfg := newConfig(opts...)
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:    cfg,
		log:    cfg.logger.Named("cpool"),
		queue:  scheduler.NewQueue(),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.registerer != nil {
		met, err := newMetrics(cfg.registerer, cfg.namespace, m.queue, cfg.workerCount)
		if err != nil {
			m.log.Warn("metrics registration incomplete", zap.Error(err))
		}
		m.metrics = met
	}

	// Workers only reach the queue, so a dropped manager is collected while
	// running. Closing the queue then lets its threads exit.
	runtime.AddCleanup(m, func(q *scheduler.Queue) { q.Close() }, m.queue)
	return m
}

// Start launches the workers and returns once every one of them is running
// on its own thread and watching the queue.
func (m *Manager) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch m.State() {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrPoolStopped
	}

	start := time.Now()
	n := m.cfg.workerCount
	pin := scheduler.LockThread
	if m.cfg.affinity {
		pin = cpu.Pin
	}
	log := m.log
	hooks := scheduler.WorkerHooks{
		OnPinError: func(id int, err error) {
			log.Warn("cpu affinity not applied", zap.Int("worker", id), zap.Error(err))
		},
		OnPanic: func(info scheduler.TaskInfo, recovered any, stack []byte) {
			log.Error("task escaped recovery",
				zap.Uint64("task", info.ID),
				zap.Int("worker", info.Worker),
				zap.Any("panic", recovered),
				zap.ByteString("stack", stack))
		},
	}

	m.queue.Open()
	ready := scheduler.NewLatch(n)
	c := &crew{workers: make([]*scheduler.Worker, n)}
	for i := range n {
		w := scheduler.NewWorker(i, m.queue, pin, hooks)
		c.workers[i] = w
		c.group.Go(func() error {
			w.Run(ready.CountDown)
			return nil
		})
	}
	m.crew.Store(c)
	ready.Wait()

	m.state.Store(int32(StateRunning))
	m.log.Info("pool started",
		zap.Int("workers", n),
		zap.Int("queued", m.queue.Len()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Stop signals the workers to exit, waits for in-flight tasks, and fails the
// tasks left in the queue with ErrPoolStopped. Concurrent calls block until
// the first one has joined every worker.
func (m *Manager) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch m.State() {
	case StateCreated:
		return ErrNotStarted
	case StateStopped:
		return ErrAlreadyStopped
	}

	m.shutdown()
	return nil
}

// Close stops the manager from any state. Unlike Stop it never reports a
// lifecycle error; a manager that never started discards its queue.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() == StateStopped {
		return nil
	}
	m.shutdown()
	return nil
}

func (m *Manager) shutdown() {
	start := time.Now()

	m.queue.Close()
	m.cancel()
	if c := m.crew.Load(); c != nil {
		_ = c.group.Wait()
	}

	discarded := m.discardQueued()
	m.state.Store(int32(StateStopped))

	m.log.Info("pool stopped",
		zap.Int("discarded", discarded),
		zap.Uint64("completed", m.completed.Load()),
		zap.Uint64("failed", m.failed.Load()),
		zap.Duration("took", time.Since(start)))
}

func (m *Manager) discardQueued() int {
	left := m.queue.Seal()
	if len(left) == 0 {
		return 0
	}
	scheduler.Discard(left, ErrPoolStopped)
	m.recordDiscarded(len(left))
	m.log.Warn("discarded queued tasks", zap.Int("count", len(left)))
	return len(left)
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// WorkerCount returns the fixed number of workers.
func (m *Manager) WorkerCount() int {
	return m.cfg.workerCount
}

// QueueLen returns the number of tasks waiting to be picked up.
func (m *Manager) QueueLen() int {
	return m.queue.Len()
}

// WorkerStates returns the state of every worker, indexed by worker ID. It
// is empty before Start. Safe to call from a task, including while Stop is
// joining the workers.
func (m *Manager) WorkerStates() []WorkerState {
	c := m.crew.Load()
	if c == nil {
		return nil
	}

	states := make([]WorkerState, len(c.workers))
	for i, w := range c.workers {
		states[i] = w.State()
	}
	return states
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Workers:   m.cfg.workerCount,
		Busy:      int(m.busy.Load()),
		Queued:    m.queue.Len(),
		Submitted: m.submitted.Load(),
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
		Discarded: m.discarded.Load(),
		Rejected:  m.rejected.Load(),
	}
}

func (m *Manager) recordSubmitted() {
	m.submitted.Add(1)
	m.metrics.incSubmitted()
}

func (m *Manager) recordRejected(err error) {
	m.rejected.Add(1)
	m.metrics.incRejected()
	if err != nil {
		m.log.Debug("dispatch rejected", zap.Error(err))
	}
}

func (m *Manager) recordDiscarded(n int) {
	m.discarded.Add(uint64(n))
	m.metrics.addDiscarded(n)
}

func (m *Manager) recordDone(info TaskInfo, err error, took time.Duration) {
	if err != nil {
		m.failed.Add(1)
		if pe, ok := err.(*PanicError); ok {
			m.log.Error("task panicked",
				zap.Uint64("task", info.ID),
				zap.Int("worker", info.Worker),
				zap.Any("panic", pe.Value))
		}
	} else {
		m.completed.Add(1)
	}
	m.metrics.observe(err, took.Seconds())
}
