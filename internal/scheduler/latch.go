package scheduler

import (
	"context"
	"sync/atomic"
)

// Latch is a single-use countdown barrier. Wait returns once CountDown has
// been called count times.
type Latch struct {
	remaining atomic.Int64
	done      chan struct{}
}

// NewLatch returns a latch expecting count arrivals. A count of zero or less
// yields an already open latch.
func NewLatch(count int) *Latch {
	l := &Latch{done: make(chan struct{})}
	l.remaining.Store(int64(count))
	if count <= 0 {
		close(l.done)
	}
	return l
}

// CountDown records one arrival. Calls past zero are ignored.
func (l *Latch) CountDown() {
	if l.remaining.Add(-1) == 0 {
		close(l.done)
	}
}

// Wait blocks until every arrival has been recorded.
func (l *Latch) Wait() {
	<-l.done
}

// WaitContext is Wait bounded by ctx.
func (l *Latch) WaitContext(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
