package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/cpool/internal/algorithms"
	"github.com/utkarsh5026/cpool/internal/cpu"
)

// BackoffType selects the delay algorithm between retry attempts.
type BackoffType = algorithms.BackoffType

const (
	// BackoffExponential doubles the delay after each failed attempt.
	BackoffExponential = algorithms.BackoffExponential
	// BackoffJittered adds ±jitter to the exponential delay.
	BackoffJittered = algorithms.BackoffJittered
	// BackoffDecorrelated picks each delay from [initial, 3*previous].
	BackoffDecorrelated = algorithms.BackoffDecorrelated
)

// Option is a functional option for configuring a Manager.
type Option func(*config)

type config struct {
	workerCount int
	rateLimiter *rate.Limiter
	affinity    bool

	maxAttempts    int
	backoffType    BackoffType
	backoffInitial time.Duration
	backoffMax     time.Duration
	backoffJitter  float64

	logger     *zap.Logger
	registerer prometheus.Registerer
	namespace  string

	onTaskStart func(TaskInfo)
	onTaskEnd   func(TaskInfo, error)
}

// WithWorkerCount fixes the number of workers. Zero or a negative count keeps
// the default: one worker per logical CPU.
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithRateLimit caps how many tasks per second the workers start, allowing
// bursts of up to burst tasks. Waiting for a token happens on the worker,
// after the task has been dequeued.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 tasks/sec, burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithRetryPolicy retries a callable that returns a non-nil error, up to
// maxAttempts attempts in total, waiting initialDelay before the first retry
// and backing off afterwards. Panics and callbacks are never retried.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.backoffInitial = initialDelay
		}
	}
}

// WithBackoff selects the delay algorithm used between retries. jitter only
// applies to BackoffJittered and is clamped to [0, 1]. WithRetryPolicy and
// WithBackoff both set the first delay; the later option wins.
func WithBackoff(kind BackoffType, initialDelay, maxDelay time.Duration, jitter float64) Option {
	return func(cfg *config) {
		cfg.backoffType = kind
		if initialDelay > 0 {
			cfg.backoffInitial = initialDelay
		}
		if maxDelay > 0 {
			cfg.backoffMax = maxDelay
		}
		cfg.backoffJitter = jitter
	}
}

// WithCPUAffinity pins worker i to core i modulo the number of CPUs, where
// the platform supports it. Workers always run on a dedicated OS thread.
func WithCPUAffinity() Option {
	return func(cfg *config) {
		cfg.affinity = true
	}
}

// WithLogger sets the logger for lifecycle events, discards and panics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics registers the pool's collectors with reg under namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(cfg *config) {
		cfg.registerer = reg
		cfg.namespace = namespace
	}
}

// WithOnTaskStart sets a hook called on the worker right before user code
// runs.
func WithOnTaskStart(fn func(TaskInfo)) Option {
	return func(cfg *config) {
		cfg.onTaskStart = fn
	}
}

// WithOnTaskEnd sets a hook called on the worker after a task finished,
// with the error its handle will carry.
func WithOnTaskEnd(fn func(TaskInfo, error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		workerCount:    cpu.NumCPU(),
		maxAttempts:    1,
		backoffType:    BackoffExponential,
		backoffInitial: 100 * time.Millisecond,
		backoffMax:     5 * time.Second,
		backoffJitter:  0.1,
		logger:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *config) newBackoff() algorithms.Backoff {
	return algorithms.NewBackoff(cfg.backoffType, cfg.backoffInitial, cfg.backoffMax, cfg.backoffJitter)
}
