package resilience

import (
	"math"
	"sync"
	"time"
)

// AdaptiveConfig configures Adaptive.
//
// The window size and watermarks are deployment tuning knobs, not
// validated constants; the defaults are starting points.
type AdaptiveConfig struct {
	// MaxAttempts is the baseline attempt cap, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay after the first attempt.
	// Default: 500ms
	BaseDelay time.Duration

	// Multiplier is the baseline backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// MaxDelay caps the computed delay.
	// Default: 30 seconds
	MaxDelay time.Duration

	// JitterRange perturbs each delay by up to +/- this fraction.
	// Default: 0 (no jitter)
	JitterRange float64

	// WindowSize is the number of recent outcomes considered.
	// Default: 100
	WindowSize int

	// LowWaterMark is the success rate below which the strategy backs
	// off harder: doubled delay scale and a raised attempt cap.
	// Default: 0.3
	LowWaterMark float64

	// HighWaterMark is the success rate above which the strategy runs
	// at its baseline aggressiveness.
	// Default: 0.8
	HighWaterMark float64

	// MinSamples is how many outcomes must be observed before the
	// window influences decisions.
	// Default: 10
	MinSamples int

	// RetryableStatuses overrides the status allow-list.
	// Default: 429, 502, 503, 504
	RetryableStatuses []int
}

// Adaptive is a feedback-controlled retry strategy. It keeps a sliding
// window of recent attempt outcomes; when the observed success rate
// drops below the low watermark it waits longer between attempts but
// allows more of them, and when the rate recovers past the high
// watermark it returns to its baseline. This avoids both giving up too
// early during transient blips and hammering a degraded dependency.
type Adaptive struct {
	policy retryPolicy
	cfg    AdaptiveConfig

	mu        sync.Mutex
	window    []bool
	next      int
	count     int
	successes int
}

// NewAdaptive creates an adaptive retry strategy.
func NewAdaptive(cfg AdaptiveConfig) *Adaptive {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.LowWaterMark <= 0 {
		cfg.LowWaterMark = 0.3
	}
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 0.8
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	policy := newRetryPolicy(cfg.MaxAttempts, cfg.RetryableStatuses)
	cfg.MaxAttempts = policy.maxAttempts
	return &Adaptive{
		policy: policy,
		cfg:    cfg,
		window: make([]bool, cfg.WindowSize),
	}
}

// RecordOutcome feeds one attempt outcome into the sliding window.
func (s *Adaptive) RecordOutcome(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == len(s.window) {
		// Evict the oldest outcome.
		if s.window[s.next] {
			s.successes--
		}
	} else {
		s.count++
	}
	s.window[s.next] = success
	if success {
		s.successes++
	}
	s.next = (s.next + 1) % len(s.window)
}

// SuccessRate returns the success rate over the current window. It
// returns 1.0 until MinSamples outcomes have been observed.
func (s *Adaptive) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successRateLocked()
}

func (s *Adaptive) successRateLocked() float64 {
	if s.count < s.cfg.MinSamples {
		return 1.0
	}
	return float64(s.successes) / float64(s.count)
}

// factors maps the observed success rate to a delay scale and an
// effective attempt cap.
func (s *Adaptive) factors() (delayScale float64, maxAttempts int) {
	s.mu.Lock()
	rate := s.successRateLocked()
	s.mu.Unlock()

	switch {
	case rate < s.cfg.LowWaterMark:
		return 2.0, s.cfg.MaxAttempts + 2
	case rate < s.cfg.HighWaterMark:
		return 1.5, s.cfg.MaxAttempts + 1
	default:
		return 1.0, s.cfg.MaxAttempts
	}
}

// ShouldRetry applies the common decision policy against the effective
// attempt cap for the current health of the dependency.
func (s *Adaptive) ShouldRetry(rc *Context) bool {
	if rc == nil {
		return false
	}
	_, maxAttempts := s.factors()
	if rc.Attempt+1 >= maxAttempts {
		return false
	}
	if rc.StatusCode != 0 {
		return s.policy.statuses[rc.StatusCode]
	}
	return rc.Kind.Retryable()
}

// Delay returns the exponential delay scaled by the current health
// factor, capped and jittered.
func (s *Adaptive) Delay(attempt int) time.Duration {
	scale, _ := s.factors()
	d := time.Duration(float64(s.cfg.BaseDelay) * math.Pow(s.cfg.Multiplier, float64(attempt)) * scale)
	if d <= 0 {
		d = s.cfg.MaxDelay
	}
	d = clampDelay(d, s.cfg.MaxDelay)
	return clampDelay(jittered(d, s.cfg.JitterRange), s.cfg.MaxDelay)
}
