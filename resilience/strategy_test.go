package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff_Defaults(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{})

	if s.policy.maxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", s.policy.maxAttempts)
	}
	if s.base != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", s.base)
	}
	if s.multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", s.multiplier)
	}
	if s.maxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", s.maxDelay)
	}
	for _, code := range []int{429, 502, 503, 504} {
		if !s.policy.statuses[code] {
			t.Errorf("status %d not retryable by default", code)
		}
	}
}

func TestExponentialBackoff_DelaySequence(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
	})

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
		10 * time.Second, // capped
	}
	for attempt, w := range want {
		if got := s.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestExponentialBackoff_DelayMonotonicAndCapped(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{
		BaseDelay:  200 * time.Millisecond,
		Multiplier: 1.7,
		MaxDelay:   5 * time.Second,
	})

	prev := time.Duration(0)
	for attempt := 0; attempt < 40; attempt++ {
		d := s.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v < Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		if d > 5*time.Second {
			t.Fatalf("Delay(%d) = %v exceeds max delay", attempt, d)
		}
		prev = d
	}
}

func TestExponentialBackoff_JitterStaysInRange(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    time.Minute,
		JitterRange: 0.25,
	})

	for i := 0; i < 200; i++ {
		d := s.Delay(1) // nominal 2s
		if d < 1500*time.Millisecond || d > 2500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1.5s, 2.5s]", d)
		}
	}
}

func TestFixedDelay(t *testing.T) {
	s := NewFixedDelay(FixedDelayConfig{MaxAttempts: 4, Delay: 250 * time.Millisecond})

	for attempt := 0; attempt < 5; attempt++ {
		if got := s.Delay(attempt); got != 250*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 250ms", attempt, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	s := NewLinearBackoff(LinearBackoffConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Increment:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	})

	want := []time.Duration{
		time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
		2 * time.Second, // capped
	}
	for attempt, w := range want {
		if got := s.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestDelayFloor(t *testing.T) {
	s := NewFixedDelay(FixedDelayConfig{Delay: time.Nanosecond})
	// The configured delay is below the floor; constructor keeps it,
	// Delay clamps it.
	if got := s.Delay(0); got < MinDelay {
		t.Errorf("Delay(0) = %v, want >= %v", got, MinDelay)
	}
}

func TestShouldRetry_AttemptCap(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{MaxAttempts: 3})

	rc := &Context{Attempt: 0, MaxAttempts: 3, Kind: FailureConnection}
	if !s.ShouldRetry(rc) {
		t.Error("attempt 0 of 3 should retry")
	}
	rc.Attempt = 1
	if !s.ShouldRetry(rc) {
		t.Error("attempt 1 of 3 should retry")
	}
	rc.Attempt = 2
	if s.ShouldRetry(rc) {
		t.Error("attempt 2 of 3 should not retry (cap reached)")
	}
}

func TestShouldRetry_StatusAllowList(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{MaxAttempts: 10})

	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{502, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
		{500, false}, // not in the default allow-list
		{200, false},
	}
	for _, tt := range tests {
		rc := &Context{Attempt: 0, StatusCode: tt.status}
		if got := s.ShouldRetry(rc); got != tt.want {
			t.Errorf("ShouldRetry(status=%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry_CustomStatusList(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{
		MaxAttempts:       10,
		RetryableStatuses: []int{500, 503},
	})

	if !s.ShouldRetry(&Context{StatusCode: 500}) {
		t.Error("500 should retry with custom allow-list")
	}
	if s.ShouldRetry(&Context{StatusCode: 429}) {
		t.Error("429 should not retry when absent from custom allow-list")
	}
}

func TestShouldRetry_FailureKinds(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{MaxAttempts: 10})

	tests := []struct {
		kind FailureKind
		want bool
	}{
		{FailureConnection, true},
		{FailureTimeout, true},
		{FailureServer, true},
		{FailureRateLimited, true},
		{FailureAuth, false},
		{FailureValidation, false},
		{FailureCanceled, false},
		{FailureNone, false},
	}
	for _, tt := range tests {
		rc := &Context{Attempt: 0, Err: errors.New("boom"), Kind: tt.kind}
		if got := s.ShouldRetry(rc); got != tt.want {
			t.Errorf("ShouldRetry(kind=%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestShouldRetry_NilContext(t *testing.T) {
	s := NewExponentialBackoff(ExponentialBackoffConfig{})
	if s.ShouldRetry(nil) {
		t.Error("nil context should not retry")
	}
}

func TestFailureKindString(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureNone, "none"},
		{FailureConnection, "connection"},
		{FailureTimeout, "timeout"},
		{FailureServer, "server"},
		{FailureRateLimited, "rate_limited"},
		{FailureAuth, "auth"},
		{FailureValidation, "validation"},
		{FailureCanceled, "canceled"},
		{FailureKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
