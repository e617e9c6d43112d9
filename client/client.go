package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/httpkit/auth"
	"github.com/jonwraymond/httpkit/cache"
	"github.com/jonwraymond/httpkit/observe"
	"github.com/jonwraymond/httpkit/resilience"
)

// Config configures a Client. The zero value of every optional field
// gets a sensible default; only BaseURL-less clients must pass absolute
// URLs per request.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Timeout is the per-attempt timeout. The whole logical call may
	// take longer once retries and backoff are counted.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. It
	// only applies when Strategy is nil. Set a negative value to
	// disable retries.
	// Default: 2 (three attempts total)
	MaxRetries int

	// Strategy decides retries. When set, MaxRetries is ignored.
	// Default: exponential backoff with MaxRetries+1 attempts.
	Strategy resilience.Strategy

	// Breaker guards the dependency. Optional. Share one breaker across
	// clients only when they target the same dependency.
	Breaker *resilience.CircuitBreaker

	// RateLimiter throttles outbound calls per target host. Optional.
	// A call rejected by the limiter fails with *RateLimitError before
	// any attempt is made.
	RateLimiter *resilience.RateLimiter

	// Auth supplies credentials. Optional. An invalid provider fails
	// the call with *AuthError before any attempt is made.
	Auth auth.Provider

	// Cache serves idempotent responses without touching the network.
	// Optional.
	Cache cache.Cache

	// CacheKeyer derives cache keys.
	// Default: vary on Accept and Authorization.
	CacheKeyer cache.Keyer

	// CachePolicy decides whether and how long responses are cached.
	// Default: cache.DefaultPolicy
	CachePolicy cache.Policy

	// Telemetry receives spans, metrics and logs.
	// Default: a no-op Telemetry.
	Telemetry *observe.Telemetry

	// Transport is the underlying round tripper.
	// Default: http.DefaultTransport
	Transport http.RoundTripper

	// DefaultHeaders are attached to every request. Per-request headers
	// of the same name replace them.
	DefaultHeaders http.Header

	// UserAgent is sent when no User-Agent header is configured.
	// Default: "httpkit"
	UserAgent string
}

// Client is a resilient HTTP client: retries with backoff, an optional
// circuit breaker, per-host rate limiting, pluggable auth and an
// optional response cache, composed in layers around one attempt loop.
//
// A Client is safe for concurrent use and should be created once and
// reused; each Client carries its own transport connection pool.
type Client struct {
	cfg       Config
	base      *url.URL
	http      *http.Client
	strategy  resilience.Strategy
	telemetry *observe.Telemetry
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "httpkit"
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.CacheKeyer == nil {
		cfg.CacheKeyer = cache.NewRequestKeyer("Accept", "Authorization")
	}
	if len(cfg.CachePolicy.Methods) == 0 && cfg.CachePolicy.DefaultTTL == 0 && cfg.CachePolicy.StatusTTL == nil {
		cfg.CachePolicy = cache.DefaultPolicy()
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("client: parse base URL %q: %w", cfg.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("client: base URL %q must be http or https", cfg.BaseURL)
		}
		base = u
	}

	strategy := cfg.Strategy
	if strategy == nil {
		strategy = resilience.NewExponentialBackoff(resilience.ExponentialBackoffConfig{
			MaxAttempts: cfg.MaxRetries + 1,
		})
	}

	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = observe.NewNoopTelemetry()
	}

	return &Client{
		cfg:       cfg,
		base:      base,
		http:      &http.Client{Transport: cfg.Transport},
		strategy:  strategy,
		telemetry: telemetry,
	}, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, opts...)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, opts...)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// Do sends a request with an arbitrary method. All verb helpers funnel
// through it.
func (c *Client) Do(ctx context.Context, method, path string, opts ...Option) (*Response, error) {
	return c.do(ctx, newRequest(method, path, opts...))
}

// BreakerTransitions adapts a Telemetry into a breaker OnStateChange
// hook, so state changes show up in metrics and logs:
//
//	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    OnStateChange: client.BreakerTransitions(telemetry),
//	})
//
// The hook runs under the breaker lock and must stay cheap.
func BreakerTransitions(t *observe.Telemetry) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		t.RecordBreakerTransition(context.Background(), from.String(), to.String())
	}
}

// attemptCap returns the total attempt limit of the active strategy.
func (c *Client) attemptCap() int {
	type capper interface{ MaxAttempts() int }
	if s, ok := c.strategy.(capper); ok {
		return s.MaxAttempts()
	}
	return c.cfg.MaxRetries + 1
}

// recordOutcome feeds adaptive strategies with the result of one
// attempt.
func (c *Client) recordOutcome(success bool) {
	if rec, ok := c.strategy.(resilience.OutcomeRecorder); ok {
		rec.RecordOutcome(success)
	}
}
