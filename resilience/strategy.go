package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// MinDelay is the floor applied to every computed retry delay.
const MinDelay = 100 * time.Millisecond

// FailureKind classifies the failure observed on one attempt. The set is
// closed on purpose: the retry decision is driven by data, not by
// matching against an open-ended error hierarchy.
type FailureKind int

const (
	// FailureNone means the attempt did not fail.
	FailureNone FailureKind = iota
	// FailureConnection means the transport could not connect.
	FailureConnection
	// FailureTimeout means the attempt exceeded its timeout.
	FailureTimeout
	// FailureServer means the dependency answered with a server error.
	FailureServer
	// FailureRateLimited means the dependency asked us to slow down.
	FailureRateLimited
	// FailureAuth means credentials were missing, expired or rejected.
	FailureAuth
	// FailureValidation means the request itself was wrong.
	FailureValidation
	// FailureCanceled means the caller canceled the operation.
	FailureCanceled
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConnection:
		return "connection"
	case FailureTimeout:
		return "timeout"
	case FailureServer:
		return "server"
	case FailureRateLimited:
		return "rate_limited"
	case FailureAuth:
		return "auth"
	case FailureValidation:
		return "validation"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind can be fixed by
// trying again. Auth and validation failures are deterministic; a retry
// cannot fix them. Cancellation is a caller decision, not a spurious
// failure.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureConnection, FailureTimeout, FailureServer, FailureRateLimited:
		return true
	default:
		return false
	}
}

// Context carries the observable state of one attempt of a logical
// operation. It is created fresh per operation, updated once per
// attempt, and discarded when the operation completes.
type Context struct {
	// Attempt is the 0-based index of the attempt that just finished.
	Attempt int

	// MaxAttempts is the total attempt cap for the operation,
	// including the first attempt.
	MaxAttempts int

	// Err is the error observed on this attempt, if any.
	Err error

	// Kind classifies Err when no response was received.
	Kind FailureKind

	// StatusCode is the HTTP status received, or 0 when the attempt
	// failed before a response arrived.
	StatusCode int

	// Elapsed is the wall-clock time spent on the operation so far.
	Elapsed time.Duration
}

// Strategy decides whether a failed attempt is worth retrying and how
// long to wait before the next one.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Delay must return a value >= MinDelay.
// - ShouldRetry must return false once rc.Attempt+1 >= the attempt cap.
type Strategy interface {
	// ShouldRetry reports whether the attempt described by rc should
	// be followed by another one.
	ShouldRetry(rc *Context) bool

	// Delay returns the wait before attempt+1, given the 0-based
	// index of the attempt that just failed.
	Delay(attempt int) time.Duration
}

// OutcomeRecorder is implemented by strategies that adapt to observed
// outcomes. The client reports every attempt result to strategies that
// implement it.
type OutcomeRecorder interface {
	RecordOutcome(success bool)
}

// DefaultRetryableStatuses is the status allow-list used when a
// strategy config leaves RetryableStatuses empty.
var DefaultRetryableStatuses = []int{429, 502, 503, 504}

// retryPolicy holds the decision inputs shared by all strategies.
type retryPolicy struct {
	maxAttempts int
	statuses    map[int]bool
}

func newRetryPolicy(maxAttempts int, statuses []int) retryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if len(statuses) == 0 {
		statuses = DefaultRetryableStatuses
	}
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return retryPolicy{maxAttempts: maxAttempts, statuses: set}
}

// shouldRetry applies the decision policy common to every strategy:
// never past the attempt cap; with a known status, only the allow-list;
// with only an error, only retryable failure kinds.
func (p retryPolicy) shouldRetry(rc *Context) bool {
	if rc == nil {
		return false
	}
	if rc.Attempt+1 >= p.maxAttempts {
		return false
	}
	if rc.StatusCode != 0 {
		return p.statuses[rc.StatusCode]
	}
	return rc.Kind.Retryable()
}

// clampDelay applies the MinDelay floor and, when max > 0, the cap.
func clampDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		d = max
	}
	if d < MinDelay {
		d = MinDelay
	}
	return d
}

// jittered perturbs d by up to +/- frac of itself, uniformly sampled.
// frac <= 0 disables jitter.
func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	// #nosec G404 -- jitter is non-cryptographic timing variance.
	offset := (rand.Float64()*2 - 1) * frac * float64(d)
	return time.Duration(float64(d) + offset)
}

// FixedDelayConfig configures FixedDelay.
type FixedDelayConfig struct {
	// MaxAttempts is the total attempt cap, including the first.
	// Default: 3
	MaxAttempts int

	// Delay is the wait between attempts.
	// Default: 1 second
	Delay time.Duration

	// JitterRange perturbs each delay by up to +/- this fraction.
	// Default: 0 (no jitter)
	JitterRange float64

	// RetryableStatuses overrides the status allow-list.
	// Default: 429, 502, 503, 504
	RetryableStatuses []int
}

// FixedDelay waits the same duration between all attempts.
type FixedDelay struct {
	policy retryPolicy
	delay  time.Duration
	jitter float64
}

// NewFixedDelay creates a fixed-delay strategy.
func NewFixedDelay(cfg FixedDelayConfig) *FixedDelay {
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	return &FixedDelay{
		policy: newRetryPolicy(cfg.MaxAttempts, cfg.RetryableStatuses),
		delay:  cfg.Delay,
		jitter: cfg.JitterRange,
	}
}

// ShouldRetry applies the common retry decision policy.
func (s *FixedDelay) ShouldRetry(rc *Context) bool { return s.policy.shouldRetry(rc) }

// Delay returns the configured delay, jittered.
func (s *FixedDelay) Delay(int) time.Duration {
	return clampDelay(jittered(s.delay, s.jitter), 0)
}

// LinearBackoffConfig configures LinearBackoff.
type LinearBackoffConfig struct {
	// MaxAttempts is the total attempt cap, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay after the first attempt.
	// Default: 500ms
	BaseDelay time.Duration

	// Increment is added to the delay for each further attempt.
	// Default: 500ms
	Increment time.Duration

	// MaxDelay caps the computed delay.
	// Default: 30 seconds
	MaxDelay time.Duration

	// JitterRange perturbs each delay by up to +/- this fraction.
	// Default: 0 (no jitter)
	JitterRange float64

	// RetryableStatuses overrides the status allow-list.
	// Default: 429, 502, 503, 504
	RetryableStatuses []int
}

// LinearBackoff increases the delay by a fixed increment per attempt.
type LinearBackoff struct {
	policy    retryPolicy
	base      time.Duration
	increment time.Duration
	maxDelay  time.Duration
	jitter    float64
}

// NewLinearBackoff creates a linear-backoff strategy.
func NewLinearBackoff(cfg LinearBackoffConfig) *LinearBackoff {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Increment <= 0 {
		cfg.Increment = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &LinearBackoff{
		policy:    newRetryPolicy(cfg.MaxAttempts, cfg.RetryableStatuses),
		base:      cfg.BaseDelay,
		increment: cfg.Increment,
		maxDelay:  cfg.MaxDelay,
		jitter:    cfg.JitterRange,
	}
}

// ShouldRetry applies the common retry decision policy.
func (s *LinearBackoff) ShouldRetry(rc *Context) bool { return s.policy.shouldRetry(rc) }

// Delay returns base + increment*attempt, capped and jittered.
func (s *LinearBackoff) Delay(attempt int) time.Duration {
	d := s.base + time.Duration(attempt)*s.increment
	return clampDelay(jittered(d, s.jitter), s.maxDelay)
}

// ExponentialBackoffConfig configures ExponentialBackoff.
type ExponentialBackoffConfig struct {
	// MaxAttempts is the total attempt cap, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay after the first attempt.
	// Default: 500ms
	BaseDelay time.Duration

	// Multiplier scales the delay for each further attempt.
	// Default: 2.0
	Multiplier float64

	// MaxDelay caps the computed delay.
	// Default: 30 seconds
	MaxDelay time.Duration

	// JitterRange perturbs each delay by up to +/- this fraction,
	// uniformly sampled. Jitter defends against retry storms from
	// synchronized clients.
	// Default: 0 (no jitter)
	JitterRange float64

	// RetryableStatuses overrides the status allow-list.
	// Default: 429, 502, 503, 504
	RetryableStatuses []int
}

// ExponentialBackoff multiplies the delay after each attempt. It is the
// default strategy used by the client.
type ExponentialBackoff struct {
	policy     retryPolicy
	base       time.Duration
	multiplier float64
	maxDelay   time.Duration
	jitter     float64
}

// NewExponentialBackoff creates an exponential-backoff strategy.
func NewExponentialBackoff(cfg ExponentialBackoffConfig) *ExponentialBackoff {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &ExponentialBackoff{
		policy:     newRetryPolicy(cfg.MaxAttempts, cfg.RetryableStatuses),
		base:       cfg.BaseDelay,
		multiplier: cfg.Multiplier,
		maxDelay:   cfg.MaxDelay,
		jitter:     cfg.JitterRange,
	}
}

// ShouldRetry applies the common retry decision policy.
func (s *ExponentialBackoff) ShouldRetry(rc *Context) bool { return s.policy.shouldRetry(rc) }

// Delay returns base * multiplier^attempt, capped and jittered.
func (s *ExponentialBackoff) Delay(attempt int) time.Duration {
	d := time.Duration(float64(s.base) * math.Pow(s.multiplier, float64(attempt)))
	if d <= 0 {
		// Overflow past the cap still means "wait the cap".
		d = s.maxDelay
	}
	d = clampDelay(d, s.maxDelay)
	return clampDelay(jittered(d, s.jitter), s.maxDelay)
}

// MaxAttempts returns the attempt cap. The client uses it for the
// attempt count on exhaustion errors.
func (s *ExponentialBackoff) MaxAttempts() int { return s.policy.maxAttempts }
