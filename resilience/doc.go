// Package resilience provides the failure-handling primitives used by the
// httpkit client: retry strategies, a circuit breaker, and a rate limiter.
//
// The primitives are deliberately layered rather than fused. The circuit
// breaker answers "is this dependency healthy enough to try at all"; a
// retry strategy answers "given this one attempt failed, is it worth
// trying again". Each is constructed explicitly and passed into the
// client, never applied through hidden wrappers, so every piece can be
// tested in isolation.
//
// # Retry strategies
//
// A Strategy makes two pure decisions: whether to retry, and how long to
// wait before the next attempt.
//
//	strategy := resilience.NewExponentialBackoff(resilience.ExponentialBackoffConfig{
//	    MaxAttempts: 5,
//	    BaseDelay:   200 * time.Millisecond,
//	    MaxDelay:    10 * time.Second,
//	    Multiplier:  2.0,
//	    JitterRange: 0.25,
//	})
//
// FixedDelay, LinearBackoff and ExponentialBackoff are stateless.
// Adaptive additionally tracks a sliding window of recent outcomes and
// scales its delays and attempt cap with the observed success rate.
//
// # Circuit breaker
//
// The breaker wraps an arbitrary operation and cycles through
// closed -> open -> half-open -> closed based on consecutive failures,
// consecutive half-open successes, and a recovery timeout:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 2,
//	    RecoveryTimeout:  30 * time.Second,
//	    CallTimeout:      10 * time.Second,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callDownstream(ctx)
//	})
//
// A blocked call returns *CircuitError; errors.Is(err, ErrCircuitOpen)
// matches it. Only errors accepted by the configured IsFailure predicate
// move the breaker's counters, so caller bugs do not trip the breaker.
//
// # Rate limiter
//
// RateLimiter throttles outbound call rate per key. It rejects instead
// of queueing: a rejected caller is expected to fall back to the retry
// layer's backoff.
package resilience
