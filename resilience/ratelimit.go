package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate allowed per key.
	// Default: 100
	RequestsPerSecond float64

	// Burst is the short-term burst allowed per key.
	// Default: 10
	Burst int

	// IdleTimeout is how long an unused key's state is kept.
	// Default: 3 minutes
	IdleTimeout time.Duration

	// SweepInterval is how often idle keys are evicted.
	// Default: 1 minute
	SweepInterval time.Duration
}

// keyLimiter pairs a token bucket with its last access time so the
// sweeper can evict idle keys.
type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles outbound call rate per key (typically the
// target host). Allow rejects rather than queues: a rejected caller
// should lean on the retry layer's backoff, not wait here.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu       sync.Mutex
	limiters map[string]*keyLimiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its idle-key sweep.
// Call Close when the limiter is no longer needed.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 3 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	rl := &RateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*keyLimiter),
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether one request for key is admitted under the
// configured rate. Rejected requests are not queued.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst),
		}
		rl.limiters[key] = kl
	}
	kl.lastSeen = time.Now()
	rl.mu.Unlock()

	return kl.limiter.Allow()
}

// Keys returns the number of keys currently tracked.
func (rl *RateLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Close stops the background sweep. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, kl := range rl.limiters {
				if now.Sub(kl.lastSeen) > rl.cfg.IdleTimeout {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}
