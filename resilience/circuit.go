package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive counted failures
	// that opens the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open
	// successes that closes the circuit again.
	// Default: 1
	SuccessThreshold int

	// RecoveryTimeout is how long the circuit stays open before a
	// single probe is admitted.
	// Default: 30 seconds
	RecoveryTimeout time.Duration

	// CallTimeout is the hard per-call timeout. It is enforced by
	// racing the operation against a timer, and a timeout counts as a
	// failure. Zero disables it.
	CallTimeout time.Duration

	// IsFailure decides whether an error counts toward breaker state.
	// Unrelated errors (caller bugs, cancellation) propagate without
	// moving the counters.
	// Default: any non-nil error except context cancellation.
	IsFailure func(err error) bool

	// OnStateChange is called on every state transition. It runs
	// under the breaker lock, so it must not call back into the
	// breaker.
	OnStateChange func(from, to State)

	// Clock overrides the time source for tests.
	// Default: time.Now
	Clock func() time.Time
}

// CircuitBreaker guards a downstream dependency. It cycles
// closed -> open -> half-open -> closed based on consecutive failures,
// a recovery timeout, and consecutive half-open successes.
//
// A breaker is owned by the executor it is injected into; share one
// across clients only when they target the same dependency.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	lastFailure   time.Time
	lastSuccess   time.Time
	probeInFlight bool
	total         uint64
	blocked       uint64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &CircuitBreaker{
		cfg:   cfg,
		state: StateClosed,
	}
}

// Execute runs op through the breaker. A blocked call returns
// *CircuitError without invoking op. A timeout of CallTimeout returns
// ErrCallTimeout and counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := cb.run(ctx, op)
	cb.record(err)
	return err
}

// admit performs the check-and-transition under the lock so that, past
// the recovery timeout, exactly one caller becomes the half-open probe.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.total++

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.cfg.Clock().Sub(cb.lastFailure) < cb.cfg.RecoveryTimeout {
			cb.blocked++
			return &CircuitError{State: StateOpen}
		}
		cb.setStateLocked(StateHalfOpen)
		cb.probeInFlight = true
		return nil

	default: // StateHalfOpen
		if cb.probeInFlight {
			cb.blocked++
			return &CircuitError{State: StateHalfOpen}
		}
		cb.probeInFlight = true
		return nil
	}
}

// run executes op under the hard call timeout.
func (cb *CircuitBreaker) run(ctx context.Context, op func(context.Context) error) error {
	if cb.cfg.CallTimeout <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrCallTimeout
		}
		return ctx.Err()
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probeInFlight = false
	}

	if err == nil {
		cb.successes++
		cb.lastSuccess = cb.cfg.Clock()
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.setStateLocked(StateClosed)
				cb.failures = 0
				cb.successes = 0
			}
		}
		return
	}

	// Only counted failures move breaker state; the breaker protects
	// against dependency failure, not caller bugs.
	if !errors.Is(err, ErrCallTimeout) && !cb.cfg.IsFailure(err) {
		return
	}

	cb.failures++
	cb.lastFailure = cb.cfg.Clock()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.setStateLocked(StateOpen)
			cb.successes = 0
		}
	case StateHalfOpen:
		// Any half-open failure reopens; no partial credit.
		cb.setStateLocked(StateOpen)
		cb.successes = 0
	}
}

func (cb *CircuitBreaker) setStateLocked(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(prev, next)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the breaker to closed with all counters zeroed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setStateLocked(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.probeInFlight = false
	cb.total = 0
	cb.blocked = 0
}

// Stats is a point-in-time snapshot of breaker counters.
type Stats struct {
	State           State
	Failures        int
	Successes       int
	TotalRequests   uint64
	BlockedRequests uint64
	FailureRate     float64
	LastFailure     time.Time
	LastSuccess     time.Time
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var rate float64
	if counted := cb.failures + cb.successes; counted > 0 {
		rate = float64(cb.failures) / float64(counted)
	}

	return Stats{
		State:           cb.state,
		Failures:        cb.failures,
		Successes:       cb.successes,
		TotalRequests:   cb.total,
		BlockedRequests: cb.blocked,
		FailureRate:     rate,
		LastFailure:     cb.lastFailure,
		LastSuccess:     cb.lastSuccess,
	}
}
