package pool

import (
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/cpool/internal/algorithms"
	"github.com/utkarsh5026/cpool/internal/scheduler"
)

// TaskInfo identifies one task execution for the task hooks.
type TaskInfo struct {
	// ID is the enqueue sequence number, starting at 1. It matches Handle.ID.
	ID uint64
	// Seq is the dequeue sequence number. Tasks leave the queue in ID order,
	// so Seq increases with ID.
	Seq uint64
	// Worker is the index of the worker running the task.
	Worker int
}

// errRateWait marks a task that never ran because the manager stopped while
// it waited for a rate limiter token.
var errRateWait = errors.New("stopped while waiting for rate limit")

// execute runs one dequeued task on the calling worker: rate limit, start
// hook, compute (retried on error), then (once) after. The returned error is
// what the task's handle carries.
func execute[R any](m *Manager, ti scheduler.TaskInfo, compute func() (R, error), after func(R) error) (result R, err error) {
	info := TaskInfo(ti)

	if err := m.waitRate(); err != nil {
		m.recordDiscarded(1)
		return result, ErrPoolStopped
	}

	m.metrics.setBusy(m.busy.Add(1))
	start := time.Now()
	defer func() {
		m.metrics.setBusy(m.busy.Add(-1))
		m.recordDone(info, err, time.Since(start))
	}()

	if hook := m.cfg.onTaskStart; hook != nil {
		if perr := protect(func() error { hook(info); return nil }); perr != nil {
			m.log.Warn("task start hook panicked", zap.Uint64("task", info.ID), zap.Error(perr))
		}
	}

	result, err = withRetry(m, info, compute)
	if err == nil && after != nil {
		err = protect(func() error { return after(result) })
	}

	if hook := m.cfg.onTaskEnd; hook != nil {
		if perr := protect(func() error { hook(info, err); return nil }); perr != nil {
			m.log.Warn("task end hook panicked", zap.Uint64("task", info.ID), zap.Error(perr))
		}
	}
	return result, err
}

func withRetry[R any](m *Manager, info TaskInfo, compute func() (R, error)) (R, error) {
	var backoff algorithms.Backoff
	for attempt := 0; ; attempt++ {
		result, err, panicked := recoverCall(compute)
		if err == nil || panicked || attempt+1 >= m.cfg.maxAttempts {
			return result, err
		}

		if backoff == nil {
			backoff = m.cfg.newBackoff()
		}
		delay := backoff.NextDelay(attempt)
		m.metrics.incRetried()
		m.log.Debug("retrying task",
			zap.Uint64("task", info.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-m.ctx.Done():
			timer.Stop()
			return result, err
		}
	}
}

func (m *Manager) waitRate() error {
	if m.cfg.rateLimiter == nil {
		return nil
	}
	if err := m.cfg.rateLimiter.Wait(m.ctx); err != nil {
		m.log.Debug("rate limit wait aborted", zap.Error(err))
		return errRateWait
	}
	return nil
}

func recoverCall[R any](fn func() (R, error)) (result R, err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
			panicked = true
		}
	}()
	result, err = fn()
	return result, err, false
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn()
}

func newPanicError(r any) *PanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: r, Stack: buf[:n]}
}
