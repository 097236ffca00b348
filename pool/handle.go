package pool

import (
	"context"
	"time"

	"github.com/utkarsh5026/cpool/internal/types"
)

// closedDone is returned by Done on invalid handles so selects never block.
var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Handle is the caller's side of a dispatched task. A handle returned for a
// nil callable or callback is invalid: IsValid reports false and Get returns
// ErrInvalidHandle without blocking.
//
// Dropping a handle without reading it is fine; the result is discarded.
type Handle[R any] struct {
	id     uint64
	future *types.Future[R]
}

// IsValid reports whether a task stands behind the handle.
func (h *Handle[R]) IsValid() bool {
	return h != nil && h.future != nil
}

// ID returns the task's enqueue sequence number, or 0 when the task never
// entered the queue.
func (h *Handle[R]) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// Wait blocks until the task has finished or was discarded.
func (h *Handle[R]) Wait() {
	<-h.Done()
}

// Get blocks until the task finishes and returns its value, or the error the
// task failed with.
//
// Example:
//
//	h := pool.Dispatch[int](m, func(a, b int) int { return a + b }, 1, 2)
//	sum, err := h.Get()
func (h *Handle[R]) Get() (R, error) {
	if !h.IsValid() {
		var zero R
		return zero, ErrInvalidHandle
	}
	return h.future.Get()
}

// GetWithContext is Get bounded by ctx. Giving up on the wait does not cancel
// the task.
func (h *Handle[R]) GetWithContext(ctx context.Context) (R, error) {
	if !h.IsValid() {
		var zero R
		return zero, ErrInvalidHandle
	}
	return h.future.GetWithContext(ctx)
}

// GetWithTimeout is Get bounded by timeout.
func (h *Handle[R]) GetWithTimeout(timeout time.Duration) (R, error) {
	if !h.IsValid() {
		var zero R
		return zero, ErrInvalidHandle
	}
	return h.future.GetWithTimeout(timeout)
}

// TryGet returns the result if it is available, without blocking.
func (h *Handle[R]) TryGet() (value R, err error, ready bool) {
	if !h.IsValid() {
		return value, ErrInvalidHandle, true
	}
	return h.future.TryGet()
}

// IsReady reports whether Get would return immediately.
func (h *Handle[R]) IsReady() bool {
	return !h.IsValid() || h.future.IsReady()
}

// Done is closed once the result is available.
func (h *Handle[R]) Done() <-chan struct{} {
	if !h.IsValid() {
		return closedDone
	}
	return h.future.Done()
}
