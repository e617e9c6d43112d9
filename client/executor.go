package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/httpkit/auth"
	"github.com/jonwraymond/httpkit/observe"
	"github.com/jonwraymond/httpkit/resilience"
)

// do runs the attempt loop for one logical call: auth fail-fast, cache
// lookup, rate limit check, then attempts through the breaker until
// success, a non-retryable error, or exhaustion.
func (c *Client) do(ctx context.Context, r *request) (resp *Response, err error) {
	b, err := c.build(r)
	if err != nil {
		return nil, err
	}

	// A provider that cannot produce a credential fails fast: the
	// request is doomed and would only burn the dependency's quota.
	if c.cfg.Auth != nil {
		if !c.cfg.Auth.Valid() {
			return nil, &AuthError{
				URL:      b.url,
				Provider: c.cfg.Auth.Name(),
				Err:      auth.ErrMissingCredentials,
			}
		}
		headers, authErr := c.cfg.Auth.Headers(ctx)
		if authErr != nil {
			return nil, &AuthError{URL: b.url, Provider: c.cfg.Auth.Name(), Err: authErr}
		}
		for k, vs := range headers {
			b.header.Del(k)
			for _, v := range vs {
				b.header.Add(k, v)
			}
		}
	}

	requestID := uuid.NewString()
	b.header.Set("X-Request-ID", requestID)

	ctx, span := c.telemetry.StartCall(ctx, observe.CallMeta{
		Method:    b.method,
		URL:       b.url,
		Host:      b.host,
		RequestID: requestID,
	})
	defer func() { c.telemetry.EndCall(span, err) }()

	if resp, ok := c.cacheLookup(ctx, b); ok {
		return resp, nil
	}

	if c.cfg.RateLimiter != nil && !c.cfg.RateLimiter.Allow(b.host) {
		return nil, &RateLimitError{URL: b.url, Err: resilience.ErrRateLimitExceeded}
	}

	start := time.Now()
	maxAttempts := c.attemptCap()

	for attempt := 0; ; attempt++ {
		attemptStart := time.Now()
		resp, err := c.attempt(ctx, b)

		// A breaker rejection is not an attempt: nothing was sent, so
		// neither the adaptive window nor the attempt metrics move.
		var circuitErr *resilience.CircuitError
		if errors.As(err, &circuitErr) {
			c.telemetry.Logger().Warn(ctx, "request blocked by circuit breaker",
				observe.Field{Key: "method", Value: b.method},
				observe.Field{Key: "url", Value: b.url},
				observe.Field{Key: "state", Value: circuitErr.State.String()},
			)
			return nil, err
		}

		c.recordOutcome(err == nil)
		c.telemetry.RecordAttempt(ctx, observe.Attempt{
			Method:   b.method,
			URL:      b.url,
			Attempt:  attempt,
			Status:   statusOf(err),
			Err:      err,
			Duration: time.Since(attemptStart),
		})

		if err == nil {
			c.cacheStore(ctx, b, resp)
			return resp, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		kind := kindOf(err)
		rc := &resilience.Context{
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Err:         err,
			Kind:        kind,
			StatusCode:  statusOf(err),
			Elapsed:     time.Since(start),
		}

		if c.strategy.ShouldRetry(rc) {
			delay := c.strategy.Delay(attempt)
			// A server-advised Retry-After is a floor, never a
			// shortcut below the backoff.
			if ra := retryAfterOf(err); ra > delay {
				delay = ra
			}
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if kind.Retryable() && attempt > 0 {
			return nil, &RetryExhaustedError{Attempts: attempt + 1, URL: b.url, Err: err}
		}
		return nil, err
	}
}

// attempt performs one transport attempt, through the breaker when one
// is configured. Only dependency failures are reported to the breaker;
// deterministic rejections (auth, validation) return through the side
// channel so they count as breaker successes.
func (c *Client) attempt(ctx context.Context, b *builtRequest) (*Response, error) {
	if c.cfg.Breaker == nil {
		return c.send(ctx, b)
	}

	var (
		resp    *Response
		sendErr error
	)
	err := c.cfg.Breaker.Execute(ctx, func(ctx context.Context) error {
		resp, sendErr = c.send(ctx, b)
		if sendErr != nil && kindOf(sendErr).Retryable() {
			return sendErr
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCallTimeout) {
			return nil, &TimeoutError{URL: b.url, Timeout: c.attemptTimeout(b), Err: err}
		}
		return nil, err
	}
	return resp, sendErr
}

// send performs one raw HTTP exchange under the per-attempt timeout and
// reads the body in full.
func (c *Client) send(ctx context.Context, b *builtRequest) (*Response, error) {
	timeout := c.attemptTimeout(b)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(b.body) > 0 {
		body = bytes.NewReader(b.body)
	}
	req, err := http.NewRequestWithContext(ctx, b.method, b.url, body)
	if err != nil {
		return nil, &ValidationError{URL: b.url, Reason: err.Error()}
	}
	req.Header = b.header.Clone()

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(b.url, timeout, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransport(b.url, timeout, err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, errorFromStatus(httpResp.StatusCode, b.url, httpResp.Header, data)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
		URL:        b.url,
		Duration:   time.Since(start),
	}, nil
}

func (c *Client) attemptTimeout(b *builtRequest) time.Duration {
	if b.timeout > 0 {
		return b.timeout
	}
	return c.cfg.Timeout
}

// cacheLookup serves a GET from the response cache when possible.
func (c *Client) cacheLookup(ctx context.Context, b *builtRequest) (*Response, bool) {
	if c.cfg.Cache == nil || b.noCache || b.method != http.MethodGet {
		return nil, false
	}

	key := c.cfg.CacheKeyer.Key(b.method, b.url, b.header)
	data, ok := c.cfg.Cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	resp, err := decodeResponse(data)
	if err != nil {
		// A corrupt entry is dropped, not served.
		_ = c.cfg.Cache.Delete(ctx, key)
		return nil, false
	}

	c.telemetry.Logger().Debug(ctx, "response served from cache",
		observe.Field{Key: "method", Value: b.method},
		observe.Field{Key: "url", Value: b.url},
	)
	return resp, true
}

// cacheStore writes a successful response into the cache when the
// policy allows it.
func (c *Client) cacheStore(ctx context.Context, b *builtRequest, resp *Response) {
	if c.cfg.Cache == nil || b.noCache {
		return
	}
	ttl := c.cfg.CachePolicy.TTL(b.method, resp.StatusCode)
	if ttl <= 0 {
		return
	}

	data, err := encodeResponse(resp)
	if err != nil {
		return
	}
	key := c.cfg.CacheKeyer.Key(b.method, b.url, b.header)
	if err := c.cfg.Cache.Set(ctx, key, data, ttl); err != nil {
		c.telemetry.Logger().Warn(ctx, "response cache store failed",
			observe.Field{Key: "url", Value: b.url},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}
