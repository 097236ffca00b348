package scheduler

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// WorkerState is the position of a worker in its loop.
type WorkerState int32

const (
	WorkerStarting WorkerState = iota
	WorkerWaiting
	WorkerExecuting
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerWaiting:
		return "waiting"
	case WorkerExecuting:
		return "executing"
	case WorkerTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// PinFunc binds the calling goroutine to an OS thread for worker id and
// returns the matching release func.
type PinFunc func(id int) (release func(), err error)

// LockThread is the default PinFunc: it dedicates one OS thread to the worker
// without restricting which core that thread runs on.
func LockThread(int) (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}

// WorkerHooks observe a worker from the outside. All fields are optional.
type WorkerHooks struct {
	// OnPinError reports a failure to apply the thread binding.
	OnPinError func(id int, err error)
	// OnPanic reports a panic that escaped a task's Run.
	OnPanic func(info TaskInfo, recovered any, stack []byte)
}

// Worker drains a Queue on its own thread until the queue stops running.
type Worker struct {
	id    int
	queue *Queue
	pin   PinFunc
	hooks WorkerHooks

	state    atomic.Int32
	executed atomic.Uint64
}

// NewWorker creates a worker for q. A nil pin falls back to LockThread.
func NewWorker(id int, q *Queue, pin PinFunc, hooks WorkerHooks) *Worker {
	if pin == nil {
		pin = LockThread
	}
	return &Worker{id: id, queue: q, pin: pin, hooks: hooks}
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// State returns the current loop state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Executed returns the number of tasks this worker has run.
func (w *Worker) Executed() uint64 {
	return w.executed.Load()
}

// Run is the worker loop. ready is called once the worker is scheduled on its
// thread and about to take its first look at the queue.
func (w *Worker) Run(ready func()) {
	release, err := w.pin(w.id)
	if release != nil {
		defer release()
	}
	if err != nil && w.hooks.OnPinError != nil {
		w.hooks.OnPinError(w.id, err)
	}
	defer w.state.Store(int32(WorkerTerminated))

	w.state.Store(int32(WorkerWaiting))
	if ready != nil {
		ready()
	}

	for {
		t, ok := w.queue.Pop()
		if !ok {
			return
		}

		w.state.Store(int32(WorkerExecuting))
		w.execute(t)
		w.executed.Add(1)
		w.state.Store(int32(WorkerWaiting))
	}
}

func (w *Worker) execute(t *Task) {
	if t == nil || t.Run == nil {
		return
	}

	info := TaskInfo{ID: t.ID, Seq: t.Seq, Worker: w.id}
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			if w.hooks.OnPanic != nil {
				w.hooks.OnPanic(info, r, buf[:n])
			}
		}
	}()

	t.Run(info)
}
