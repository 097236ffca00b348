// Package scheduler implements the task queue and the worker loop that
// drains it.
package scheduler

import (
	"errors"
	"sync"
)

// ErrQueueSealed is returned when pushing onto a queue that has been sealed
// for shutdown.
var ErrQueueSealed = errors.New("queue is sealed")

// Queue is an unbounded FIFO of tasks guarded by a single mutex and condition
// variable. The running flag that workers observe lives under the same lock.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	items []*Task
	head  int

	running bool
	sealed  bool

	enqueued uint64
	dequeued uint64
}

// NewQueue returns an empty, not yet running queue. Tasks may be pushed
// before Open; they wait until workers start popping.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends t and wakes one waiting worker. It assigns and returns the
// task's enqueue ID.
func (q *Queue) Push(t *Task) (uint64, error) {
	q.mu.Lock()
	if q.sealed {
		q.mu.Unlock()
		return 0, ErrQueueSealed
	}
	q.enqueued++
	t.ID = q.enqueued
	q.items = append(q.items, t)
	q.mu.Unlock()

	// One new item needs at most one worker.
	q.cond.Signal()
	return t.ID, nil
}

// Pop blocks until a task is available or the queue stops running. ok is
// false once the queue has stopped; tasks left behind stay queued.
func (q *Queue) Pop() (t *Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.running && q.lenLocked() == 0 {
		q.cond.Wait()
	}
	if !q.running {
		return nil, false
	}

	t = q.items[q.head]
	q.items[q.head] = nil
	q.head++
	q.compactLocked()

	q.dequeued++
	t.Seq = q.dequeued
	return t, true
}

// Open marks the queue running so Pop hands out tasks.
func (q *Queue) Open() {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()
}

// Close stops the queue and wakes every waiting worker.
func (q *Queue) Close() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Seal rejects all further pushes and returns the tasks still queued, in
// FIFO order.
func (q *Queue) Seal() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sealed = true
	left := make([]*Task, q.lenLocked())
	copy(left, q.items[q.head:])
	q.items = nil
	q.head = 0
	return left
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Running reports whether workers may pop from the queue.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Counts returns how many tasks have been pushed and popped so far.
func (q *Queue) Counts() (enqueued, dequeued uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueued, q.dequeued
}

func (q *Queue) lenLocked() int {
	return len(q.items) - q.head
}

// compactLocked drops the consumed prefix once it dominates the slice.
func (q *Queue) compactLocked() {
	if q.head < 64 || q.head*2 < len(q.items) {
		return
	}
	n := copy(q.items, q.items[q.head:])
	clear(q.items[n:])
	q.items = q.items[:n]
	q.head = 0
}

// Discard drops every task in tasks with err.
func Discard(tasks []*Task, err error) {
	for _, t := range tasks {
		t.discard(err)
	}
}
