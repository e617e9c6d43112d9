package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errDownstream = errors.New("downstream unavailable")

func failingOp(ctx context.Context) error { return errDownstream }
func okOp(ctx context.Context) error      { return nil }

// fakeClock lets tests advance the breaker's notion of time without
// sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.cfg.FailureThreshold)
	}
	if cb.cfg.SuccessThreshold != 1 {
		t.Errorf("SuccessThreshold = %d, want 1", cb.cfg.SuccessThreshold)
	}
	if cb.cfg.RecoveryTimeout != 30*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 30s", cb.cfg.RecoveryTimeout)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAtThresholdExactly(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 4})
	ctx := context.Background()

	// No call before the Nth failure is rejected.
	for i := 0; i < 4; i++ {
		err := cb.Execute(ctx, failingOp)
		if !errors.Is(err, errDownstream) {
			t.Fatalf("failure %d: err = %v, want downstream error", i+1, err)
		}
		if i < 3 && cb.State() != StateClosed {
			t.Fatalf("after %d failures state = %v, want closed", i+1, cb.State())
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("after 4 failures state = %v, want open", cb.State())
	}

	// The very next call is blocked without invoking the operation.
	err := cb.Execute(ctx, func(ctx context.Context) error {
		t.Error("operation must not run while open")
		return nil
	})
	var cerr *CircuitError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CircuitError", err)
	}
	if cerr.State != StateOpen {
		t.Errorf("CircuitError.State = %v, want open", cerr.State)
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("CircuitError should match ErrCircuitOpen")
	}
}

func TestCircuitBreaker_RecoveryAdmitsProbe(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  5 * time.Second,
		Clock:            clock.Now,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, failingOp)
	}
	if err := cb.Execute(ctx, okOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("call while open: err = %v, want ErrCircuitOpen", err)
	}

	// Before the timeout elapses, still blocked.
	clock.Advance(4 * time.Second)
	if err := cb.Execute(ctx, okOp); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("call at 4s: err = %v, want ErrCircuitOpen", err)
	}

	// At the timeout the probe is admitted and, succeeding, closes.
	clock.Advance(time.Second)
	if err := cb.Execute(ctx, okOp); err != nil {
		t.Fatalf("probe: err = %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("after successful probe state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_SingleProbeUnderConcurrency(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Clock:            clock.Now,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	clock.Advance(2 * time.Second)

	const callers = 16
	var admitted atomic.Int32
	var blocked atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cb.Execute(ctx, func(ctx context.Context) error {
				admitted.Add(1)
				<-release // hold the probe open so nobody else sneaks in
				return nil
			})
			if errors.Is(err, ErrCircuitOpen) {
				blocked.Add(1)
			}
		}()
	}

	// Let every caller hit the admission check before resolving.
	for int(admitted.Load()+blocked.Load()) < callers {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("admitted probes = %d, want exactly 1", got)
	}
	if got := blocked.Load(); got != callers-1 {
		t.Errorf("blocked callers = %d, want %d", got, callers-1)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 3,
		RecoveryTimeout:  time.Second,
		Clock:            clock.Now,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	clock.Advance(2 * time.Second)

	// Two successful probes, still below the success threshold.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, okOp); err != nil {
			t.Fatalf("probe %d: err = %v", i+1, err)
		}
		if cb.State() != StateHalfOpen {
			t.Fatalf("after probe %d state = %v, want half-open", i+1, cb.State())
		}
	}

	// A single failure reverts to open; no partial credit.
	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Errorf("after half-open failure state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessThresholdCloses(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Second,
		Clock:            clock.Now,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	clock.Advance(2 * time.Second)

	if err := cb.Execute(ctx, okOp); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("after 1 success state = %v, want half-open", cb.State())
	}
	if err := cb.Execute(ctx, okOp); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Errorf("after 2 successes state = %v, want closed", cb.State())
	}

	stats := cb.Stats()
	if stats.Failures != 0 || stats.Successes != 0 {
		t.Errorf("counters not zeroed on close: %+v", stats)
	}
}

func TestCircuitBreaker_SuccessResetsClosedFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, okOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)

	// Failures are consecutive, the success reset the streak.
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_UnexpectedErrorsDoNotCount(t *testing.T) {
	bugErr := errors.New("nil pointer somewhere")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return errors.Is(err, errDownstream)
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, func(ctx context.Context) error { return bugErr })
		if !errors.Is(err, bugErr) {
			t.Fatalf("err = %v, want caller bug to propagate", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (caller bugs must not trip the breaker)", cb.State())
	}

	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after a counted failure", cb.State())
	}
}

func TestCircuitBreaker_CallTimeoutCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		CallTimeout:      20 * time.Millisecond,
	})
	ctx := context.Background()

	err := cb.Execute(ctx, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("err = %v, want ErrCallTimeout", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open (timeout counts as failure)", cb.State())
	}
}

func TestCircuitBreaker_CancellationDoesNotCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed (cancellation is not a spurious failure)", cb.State())
	}
}

func TestCircuitBreaker_StatsAndBlockedCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, failingOp)
	_ = cb.Execute(ctx, okOp) // blocked
	_ = cb.Execute(ctx, okOp) // blocked

	stats := cb.Stats()
	if stats.State != StateOpen {
		t.Errorf("State = %v, want open", stats.State)
	}
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
	if stats.BlockedRequests != 2 {
		t.Errorf("BlockedRequests = %d, want 2", stats.BlockedRequests)
	}
	if stats.Failures != 2 {
		t.Errorf("Failures = %d, want 2", stats.Failures)
	}
	if stats.FailureRate != 1.0 {
		t.Errorf("FailureRate = %v, want 1.0", stats.FailureRate)
	}
	if stats.LastFailure.IsZero() {
		t.Error("LastFailure should be set")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if err := cb.Execute(ctx, okOp); err != nil {
		t.Errorf("call after Reset: err = %v", err)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Clock:            clock.Now,
		OnStateChange: func(from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, failingOp)
	clock.Advance(2 * time.Second)
	_ = cb.Execute(ctx, okOp)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
