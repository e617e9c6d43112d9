// Package client is a resilient HTTP client for flaky upstream APIs.
//
// One attempt loop composes the resilience layers in a fixed order:
// credential fail-fast, response cache lookup, local rate limit check,
// then attempts guarded by the circuit breaker and driven by a retry
// strategy. Each layer is injected through Config; none is mandatory.
//
//	c, err := client.New(client.Config{
//	    BaseURL: "https://api.example.net",
//	    Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
//	    Auth:    auth.NewBearerProvider(token),
//	})
//	if err != nil {
//	    return err
//	}
//
//	resp, err := c.Get(ctx, "/v1/subscribers", client.WithQuery("region", "west"))
//
// Failures come back as typed errors: *ConnectionError, *TimeoutError,
// *AuthError, *ValidationError, *RateLimitError, *ServerError, and
// *RetryExhaustedError when every allowed attempt failed. A call
// blocked by the breaker returns *resilience.CircuitError, which
// matches errors.Is(err, resilience.ErrCircuitOpen). Deterministic
// failures (auth, validation) are never retried; transient ones
// (connection, timeout, 5xx on the allow-list, 429) are, with the
// server's Retry-After honored as a floor on the backoff delay.
package client
