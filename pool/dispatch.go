package pool

import (
	"github.com/utkarsh5026/cpool/internal/scheduler"
	"github.com/utkarsh5026/cpool/internal/types"
)

// Dispatch queues fn(args...) and returns immediately with a handle to its
// result. fn may be a bare function, Func(fn), or Method(fn) with the
// instance as the first argument; it may return nothing, R, error or
// (R, error).
//
// A nil fn yields an invalid handle and queues nothing. A fn that cannot be
// called with args, or whose result is not an R, yields a handle already
// failed with an *InvocationError. Dispatching on a stopped manager yields a
// handle already failed with ErrPoolStopped.
//
// Example:
//
//	h := pool.Dispatch[string](m, strings.Repeat, "ab", 3)
//	s, err := h.Get() // "ababab", nil
func Dispatch[R any](m *Manager, fn any, args ...any) *Handle[R] {
	c := toCallable(fn)
	if c.IsNil() {
		m.recordRejected(nil)
		return &Handle[R]{}
	}

	work, err := resolveWork[R](c, args)
	if err != nil {
		m.recordRejected(err)
		return failedHandle[R](err)
	}

	return submit(m, func(info scheduler.TaskInfo) (R, error) {
		return execute(m, info, work, nil)
	})
}

// DispatchWithCallback queues fn and hands its result to callback on the
// same worker. The returned handle carries no value: it completes after the
// callback returns, or fails with the error from fn or callback. callback
// does not run when fn fails.
//
// The instance for method shapes is the first argument:
//
//	DispatchWithCallback(m, fn, cb, args...)                   // cb(fn(args...))
//	DispatchWithCallback(m, fn, Method(cb), obj, args...)      // cb(obj, fn(args...))
//	DispatchWithCallback(m, Method(fn), Method(cb), obj, args...) // cb(obj, fn(obj, args...))
//	DispatchWithCallback(m, Method(fn), cb, obj, args...)      // cb(fn(obj, args...))
//
// A callable that returns nothing calls callback with just the instance, if
// any. callback may return nothing or an error. A nil fn or callback yields
// an invalid handle and queues nothing.
func DispatchWithCallback(m *Manager, fn, callback any, args ...any) *Handle[struct{}] {
	work, cb := toCallable(fn), toCallable(callback)
	if work.IsNil() || cb.IsNil() {
		m.recordRejected(nil)
		return &Handle[struct{}]{}
	}

	bw, bc, err := bindWithCallback(work, cb, args)
	if err != nil {
		m.recordRejected(err)
		return failedHandle[struct{}](err)
	}

	return submit(m, func(info scheduler.TaskInfo) (struct{}, error) {
		_, err := execute(m, info, bw.call, bc.call)
		return struct{}{}, err
	})
}

func bindWithCallback(work, cb Callable, args []any) (*boundCall, *callbackCall, error) {
	var instance []any
	rest := args
	if work.IsMethod() || cb.IsMethod() {
		if len(args) == 0 {
			return nil, nil, badCallable("callable", "method shape needs an instance as first argument")
		}
		instance, rest = args[:1], args[1:]
	}

	workArgs := rest
	if work.IsMethod() {
		workArgs = args
	}
	bw, err := bind("callable", work.fn, workArgs)
	if err != nil {
		return nil, nil, err
	}

	var prefix []any
	if cb.IsMethod() {
		prefix = instance
	}
	bc, err := bindCallback(cb.fn, prefix, bw.shape.value)
	if err != nil {
		return nil, nil, err
	}
	return bw, bc, nil
}

// submit wraps run in a task bound to a fresh future and queues it.
func submit[R any](m *Manager, run func(scheduler.TaskInfo) (R, error)) *Handle[R] {
	future := types.NewFuture[R]()
	task := &scheduler.Task{
		Run: func(info scheduler.TaskInfo) {
			future.Complete(run(info))
		},
		Discard: func(err error) {
			future.Fail(err)
		},
	}

	m.recordSubmitted()
	id, err := m.queue.Push(task)
	if err != nil {
		m.recordDiscarded(1)
		future.Fail(ErrPoolStopped)
		return &Handle[R]{future: future}
	}
	return &Handle[R]{id: id, future: future}
}

func failedHandle[R any](err error) *Handle[R] {
	future := types.NewFuture[R]()
	future.Fail(err)
	return &Handle[R]{future: future}
}
