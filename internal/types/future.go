// Package types holds the result plumbing shared by the scheduler and the
// public pool package.
package types

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one task: a value or the error that replaced it.
type Result[R any] struct {
	Value R
	Error error
}

// Future is a one-shot slot written by the worker that executes a task and
// read by whoever holds it. The first Complete or Fail wins; later writes are
// ignored. Reads may happen any number of times from any goroutine.
type Future[R any] struct {
	once   sync.Once
	done   chan struct{}
	result Result[R]
}

// NewFuture returns an unfulfilled future.
func NewFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// Complete fulfils the future. It reports whether this call was the one that
// fulfilled it.
func (f *Future[R]) Complete(value R, err error) bool {
	won := false
	f.once.Do(func() {
		f.result = Result[R]{Value: value, Error: err}
		close(f.done)
		won = true
	})
	return won
}

// Fail fulfils the future with err and the zero value.
func (f *Future[R]) Fail(err error) bool {
	var zero R
	return f.Complete(zero, err)
}

// Get blocks until the future is fulfilled.
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.result.Value, f.result.Error
}

// GetWithContext blocks until the future is fulfilled or ctx is done. A
// cancelled wait leaves the future untouched.
func (f *Future[R]) GetWithContext(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result.Value, f.result.Error
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// GetWithTimeout is GetWithContext with a deadline of now+timeout.
func (f *Future[R]) GetWithTimeout(timeout time.Duration) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return f.GetWithContext(ctx)
}

// TryGet returns the result without blocking. ready is false while the
// future is still pending.
func (f *Future[R]) TryGet() (value R, err error, ready bool) {
	select {
	case <-f.done:
		return f.result.Value, f.result.Error, true
	default:
		return value, nil, false
	}
}

// Done is closed once the future is fulfilled.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// IsReady reports whether the future has been fulfilled.
func (f *Future[R]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
