package pool

import (
	"errors"
	"fmt"
)

// Sentinel errors for manager lifecycle and dispatch.
var (
	// ErrNotStarted is returned by Stop on a manager that was never started.
	ErrNotStarted = errors.New("pool not started")

	// ErrAlreadyStarted is returned by Start on a running manager.
	ErrAlreadyStarted = errors.New("pool already started")

	// ErrAlreadyStopped is returned by Stop on a stopped manager.
	ErrAlreadyStopped = errors.New("pool already stopped")

	// ErrPoolStopped fails every task that was still queued when the manager
	// stopped, and every dispatch made afterwards.
	ErrPoolStopped = errors.New("pool stopped")

	// ErrInvalidHandle is returned by Get on a handle produced by a dispatch
	// with a nil callable or callback.
	ErrInvalidHandle = errors.New("invalid handle: nothing was dispatched")

	// ErrBadCallable is wrapped by InvocationError when a callable cannot be
	// invoked with the supplied arguments.
	ErrBadCallable = errors.New("callable does not match its arguments")
)

// PanicError carries a panic recovered from user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// InvocationError reports why a callable was rejected at dispatch time.
type InvocationError struct {
	// Role is "callable" or "callback".
	Role   string
	Reason string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrBadCallable, e.Role, e.Reason)
}

func (e *InvocationError) Unwrap() error {
	return ErrBadCallable
}

func badCallable(role, format string, args ...any) error {
	return &InvocationError{Role: role, Reason: fmt.Sprintf(format, args...)}
}
