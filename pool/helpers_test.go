package pool

import (
	"testing"
	"time"
)

// threadingConfig is one way of binding workers to OS threads.
type threadingConfig struct {
	name string
	opts []Option
}

func getAllThreadings(workerCount int) []threadingConfig {
	return []threadingConfig{
		{
			name: "LockedThread",
			opts: []Option{WithWorkerCount(workerCount)},
		},
		{
			name: "CPUAffinity",
			opts: []Option{WithWorkerCount(workerCount), WithCPUAffinity()},
		},
	}
}

// runThreadingTest runs testFunc once per threading mode.
func runThreadingTest(t *testing.T, testFunc func(t *testing.T, s threadingConfig), workerCount int, additionalOpts ...Option) {
	for _, s := range getAllThreadings(workerCount) {
		s.opts = append(s.opts, additionalOpts...)
		t.Run(s.name, func(t *testing.T) {
			testFunc(t, s)
		})
	}
}

// startManager creates and starts a manager that is closed when the test ends.
func startManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(opts...)
	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// getWithin fails the test if h does not resolve within d.
func getWithin[R any](t *testing.T, h *Handle[R], d time.Duration) (R, error) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(d):
		t.Fatalf("handle %d not ready after %v", h.ID(), d)
	}
	return h.Get()
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", d)
		}
		time.Sleep(time.Millisecond)
	}
}
