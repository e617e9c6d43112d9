package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker blocks a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrCallTimeout is returned when an operation exceeds the breaker's
	// call timeout. The breaker counts it as a failure.
	ErrCallTimeout = errors.New("resilience: call timed out")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")
)

// CircuitError reports a call that was blocked by the circuit breaker.
// It carries the breaker state at the time of the block so callers can
// distinguish "open, cooling down" from "half-open, probe in flight".
//
// CircuitError matches ErrCircuitOpen under errors.Is.
type CircuitError struct {
	// State is the breaker state that caused the block.
	State State
}

// Error implements the error interface.
func (e *CircuitError) Error() string {
	return "resilience: circuit breaker is " + e.State.String()
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitError) Is(target error) bool {
	return target == ErrCircuitOpen
}
