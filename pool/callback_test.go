package pool

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder collects callback deliveries.
type recorder struct {
	mu     sync.Mutex
	value  string
	calls  int
	events []string
}

func (r *recorder) Produce(n int, s string) string {
	r.mu.Lock()
	r.events = append(r.events, "produce")
	r.mu.Unlock()
	return strings.Repeat(s, n)
}

func (r *recorder) Deliver(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "deliver")
	r.value = v
	r.calls++
}

func (r *recorder) snapshot() (string, int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.calls, append([]string(nil), r.events...)
}

type instance struct {
	mu     sync.Mutex
	value  string
	calls  int
	fnSeen *instance
}

func (x *instance) compute(n int, s string) string {
	x.mu.Lock()
	x.fnSeen = x
	x.mu.Unlock()
	if n == 1 && s == "x" {
		return "result"
	}
	return "unexpected"
}

func (x *instance) store(v string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.value = v
	x.calls++
}

func TestDispatchWithCallback_Shapes(t *testing.T) {
	m := startManager(t, WithWorkerCount(2))

	t.Run("free function, free callback", func(t *testing.T) {
		var got atomic.Value
		h := DispatchWithCallback(m, strings.ToUpper, func(s string) { got.Store(s) }, "abc")
		if _, err := h.Get(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Load() != "ABC" {
			t.Errorf("callback got %v", got.Load())
		}
	})

	t.Run("free function, method callback", func(t *testing.T) {
		r := &recorder{}
		h := DispatchWithCallback(m, strings.Repeat, Method((*recorder).Deliver), r, "ab", 2)
		if _, err := h.Get(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, calls, _ := r.snapshot(); v != "abab" || calls != 1 {
			t.Errorf("got value %q after %d calls", v, calls)
		}
	})

	t.Run("method function, method callback", func(t *testing.T) {
		r := &recorder{}
		h := DispatchWithCallback(m, Method((*recorder).Produce), Method((*recorder).Deliver), r, 3, "z")
		if _, err := h.Get(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		v, calls, events := r.snapshot()
		if v != "zzz" || calls != 1 {
			t.Errorf("got value %q after %d calls", v, calls)
		}
		if strings.Join(events, ",") != "produce,deliver" {
			t.Errorf("unexpected order: %v", events)
		}
	})

	t.Run("method function, free callback", func(t *testing.T) {
		r := &recorder{}
		var got atomic.Value
		h := DispatchWithCallback(m, Method((*recorder).Produce), func(s string) { got.Store(s) }, r, 2, "q")
		if _, err := h.Get(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Load() != "qq" {
			t.Errorf("callback got %v", got.Load())
		}
	})

	t.Run("callable without result", func(t *testing.T) {
		var order []string
		var mu sync.Mutex
		note := func(s string) {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
		h := DispatchWithCallback(m, func() { note("fn") }, func() { note("cb") })
		if _, err := h.Get(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if strings.Join(order, ",") != "fn,cb" {
			t.Errorf("unexpected order: %v", order)
		}
	})
}

func TestDispatchWithCallback_InstanceDelivery(t *testing.T) {
	runThreadingTest(t, func(t *testing.T, s threadingConfig) {
		m := startManager(t, s.opts...)

		x := &instance{}
		h := DispatchWithCallback(m, Method((*instance).compute), Method((*instance).store), x, 1, "x")
		if _, err := getWithin(t, h, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		x.mu.Lock()
		defer x.mu.Unlock()
		if x.value != "result" {
			t.Errorf("expected value result, got %q", x.value)
		}
		if x.calls != 1 {
			t.Errorf("expected exactly one delivery, got %d", x.calls)
		}
		if x.fnSeen != x {
			t.Error("callable did not run on the dispatched instance")
		}
	}, 2)
}

func TestDispatchWithCallback_Ordering(t *testing.T) {
	m := startManager(t, WithWorkerCount(1))

	var seen atomic.Int32
	release := make(chan struct{})
	h := DispatchWithCallback(m,
		func() int { return 1 },
		func(int) {
			<-release
			seen.Add(1)
		},
	)

	time.Sleep(20 * time.Millisecond)
	if h.IsReady() {
		t.Fatal("handle completed before the callback returned")
	}
	close(release)
	h.Wait()
	if seen.Load() != 1 {
		t.Errorf("expected callback to have run once, got %d", seen.Load())
	}
}

func TestDispatchWithCallback_Failures(t *testing.T) {
	m := startManager(t, WithWorkerCount(2))
	errCompute := errors.New("compute failed")
	errStore := errors.New("store failed")

	t.Run("callable error skips callback", func(t *testing.T) {
		var called atomic.Bool
		h := DispatchWithCallback(m,
			func() (int, error) { return 0, errCompute },
			func(int) { called.Store(true) },
		)
		if _, err := h.Get(); !errors.Is(err, errCompute) {
			t.Errorf("expected errCompute, got %v", err)
		}
		if called.Load() {
			t.Error("callback ran after a failed computation")
		}
	})

	t.Run("callable panic skips callback", func(t *testing.T) {
		var called atomic.Bool
		h := DispatchWithCallback(m,
			func() int { panic("no") },
			func(int) { called.Store(true) },
		)
		var pe *PanicError
		if _, err := h.Get(); !errors.As(err, &pe) {
			t.Errorf("expected *PanicError, got %v", err)
		}
		if called.Load() {
			t.Error("callback ran after a panic")
		}
	})

	t.Run("callback error", func(t *testing.T) {
		h := DispatchWithCallback(m, func() int { return 1 }, func(int) error { return errStore })
		if _, err := h.Get(); !errors.Is(err, errStore) {
			t.Errorf("expected errStore, got %v", err)
		}
	})

	t.Run("callback panic", func(t *testing.T) {
		h := DispatchWithCallback(m, func() int { return 1 }, func(int) { panic("cb") })
		var pe *PanicError
		if _, err := h.Get(); !errors.As(err, &pe) || pe.Value != "cb" {
			t.Errorf("expected callback panic, got %v", err)
		}
	})
}

func TestDispatchWithCallback_Invalid(t *testing.T) {
	m := NewManager(WithWorkerCount(1))
	defer m.Close()

	var nilCallback func(int)
	tests := []struct {
		name     string
		fn       any
		callback any
		args     []any
		invalid  bool
	}{
		{name: "nil callable", fn: nil, callback: func(int) {}, invalid: true},
		{name: "nil callback", fn: func() int { return 1 }, callback: nil, invalid: true},
		{name: "typed nil callback", fn: func() int { return 1 }, callback: nilCallback, invalid: true},
		{name: "nil method callback", fn: func() int { return 1 }, callback: Method(nil), invalid: true},
		{name: "callback type mismatch", fn: func() int { return 1 }, callback: func(string) {}},
		{name: "callback returns value", fn: func() int { return 1 }, callback: func(int) int { return 0 }},
		{name: "method callback without instance", fn: func() string { return "" }, callback: Method((*recorder).Deliver)},
		{name: "method callback wrong instance", fn: func() string { return "" }, callback: Method((*recorder).Deliver), args: []any{&instance{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := DispatchWithCallback(m, tt.fn, tt.callback, tt.args...)
			_, err := h.Get()
			if tt.invalid {
				if h.IsValid() || !errors.Is(err, ErrInvalidHandle) {
					t.Errorf("expected invalid handle, got valid=%v err=%v", h.IsValid(), err)
				}
				return
			}
			if !errors.Is(err, ErrBadCallable) {
				t.Errorf("expected ErrBadCallable, got %v", err)
			}
		})
	}

	if m.QueueLen() != 0 {
		t.Errorf("expected nothing queued, got %d", m.QueueLen())
	}
}
