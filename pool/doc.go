// Package pool provides a fixed-size worker pool that runs arbitrary
// callables and hands back their results.
//
// The primary type is Manager: a fixed set of workers, each on its own OS
// thread, draining one FIFO queue. Callables are dispatched with Dispatch,
// which returns a Handle to the result, or with DispatchWithCallback, which
// passes the result to a completion callback on the worker.
//
// # Basic Usage
//
//	m := pool.NewManager(pool.WithWorkerCount(4))
//	if err := m.Start(); err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	h := pool.Dispatch[int](m, func(a, b int) int { return a + b }, 2, 3)
//	sum, err := h.Get() // 5, nil
//
// # Callables
//
// Anything callable can be dispatched: functions, closures, method values
// (obj.Method) and method expressions wrapped in Method, which take the
// instance as the first argument:
//
//	pool.Dispatch[string](m, pool.Method((*Greeter).Greet), g, "world")
//
// A callable may return nothing, a value, an error, or a value and an error.
// A returned error or a panic fails the handle; panics arrive as *PanicError
// with the stack of the worker.
//
// # Callbacks
//
//	pool.DispatchWithCallback(m, compute, pool.Method((*Sink).Store), sink, input)
//
// stores compute(input) through sink.Store on the worker that computed it.
// The returned handle completes after the callback.
//
// # Lifecycle
//
// Dispatch works in every state. Tasks dispatched before Start wait in the
// queue. Stop lets running tasks finish and fails queued ones with
// ErrPoolStopped; later dispatches fail the same way.
//
// # Retry Logic
//
//	m := pool.NewManager(
//	    pool.WithRetryPolicy(3, 100*time.Millisecond),
//	    pool.WithBackoff(pool.BackoffJittered, 100*time.Millisecond, 2*time.Second, 0.2),
//	)
//
// Only returned errors are retried. Callbacks and panics run once.
//
// # Rate Limiting
//
//	m := pool.NewManager(pool.WithWorkerCount(8), pool.WithRateLimit(5, 10))
//
// # Observability
//
// WithLogger takes a *zap.Logger for lifecycle and panic events, and
// WithMetrics registers prometheus collectors. Stats returns the same
// counters without prometheus.
package pool
