package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a cached value with its expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCacheConfig configures the in-memory cache.
type MemoryCacheConfig struct {
	// MaxEntries bounds the number of retained entries. When full, the
	// entry closest to expiry is evicted.
	// Default: 1024
	MaxEntries int

	// SweepInterval is how often expired entries are removed.
	// Default: 1 minute
	SweepInterval time.Duration

	// Clock overrides the time source for tests.
	// Default: time.Now
	Clock func() time.Time
}

// MemoryCache is a TTL-bounded in-process cache.
type MemoryCache struct {
	cfg MemoryCacheConfig

	mu      sync.RWMutex
	entries map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates an in-memory cache and starts its sweep
// goroutine. Call Close when the cache is no longer needed.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &MemoryCache{
		cfg:     cfg,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get retrieves a cached value. Expired entries count as misses and are
// removed lazily.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.cfg.Clock()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value. TTL<=0 is a no-op: the caller decided the
// response is not cacheable.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	now := c.cfg.Clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictSoonestLocked(now)
	}
	c.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Delete removes a cached value. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of retained entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweep goroutine and drops every entry.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// evictSoonestLocked drops the entry closest to expiry. Expired entries
// are already the closest, so a full cache of stale data self-heals.
func (c *MemoryCache) evictSoonestLocked(now time.Time) {
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if e.expired(now) {
			victim = k
			break
		}
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = k
			soonest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.cfg.Clock()
			c.mu.Lock()
			for k, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
