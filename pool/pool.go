package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Sentinel errors for pool operations.
var (
	// ErrPoolExhausted is returned when every handle is borrowed and
	// no idle entry can be evicted.
	ErrPoolExhausted = errors.New("pool: exhausted")

	// ErrPoolClosed is returned when acquiring from a closed pool.
	ErrPoolClosed = errors.New("pool: closed")
)

// Conn is a reusable transport handle.
//
// Contract:
// - Alive must be cheap; the pool calls it on every borrow and release.
// - Close must be idempotent.
type Conn interface {
	Alive() bool
	Close() error
}

// Dialer creates a new transport handle for a key.
type Dialer func(ctx context.Context, key Key) (Conn, error)

// Key identifies a pooled connection. Two requests share a handle only
// when host, port and credential identity all match.
type Key struct {
	Host     string
	Port     int
	Identity string
}

// String returns the key in host:port/identity form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d/%s", k.Host, k.Port, k.Identity)
}

// Config configures the pool.
type Config struct {
	// Dial creates new handles. Required.
	Dial Dialer

	// MaxSize bounds both the number of concurrently borrowed handles
	// and the number of retained entries.
	// Default: 10
	MaxSize int

	// MaxIdle is how long an unused entry is retained.
	// Default: 90 seconds
	MaxIdle time.Duration

	// MaxAge is the lifetime of a handle regardless of use.
	// Default: 30 minutes
	MaxAge time.Duration

	// SweepInterval is how often idle and aged entries are evicted.
	// Default: 30 seconds
	SweepInterval time.Duration

	// Clock overrides the time source for tests.
	// Default: time.Now
	Clock func() time.Time
}

// Entry is a pooled handle together with its bookkeeping.
type Entry struct {
	key       Key
	conn      Conn
	createdAt time.Time
	lastUsed  time.Time
	uses      uint64
	inUse     bool
}

// Conn returns the underlying transport handle.
func (e *Entry) Conn() Conn { return e.conn }

// Key returns the key the entry was dialed for.
func (e *Entry) Key() Key { return e.key }

// Uses returns how many times the entry has been borrowed.
func (e *Entry) Uses() uint64 { return e.uses }

// Pool reuses transport handles per key, bounded by MaxSize.
type Pool struct {
	cfg Config
	sem *semaphore.Weighted

	mu      sync.Mutex
	entries []*Entry
	closed  bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a pool and starts its background sweep. Call Close when
// the pool is no longer needed.
func New(cfg Config) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 90 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	p := &Pool{
		cfg:  cfg,
		sem:  semaphore.NewWeighted(int64(cfg.MaxSize)),
		stop: make(chan struct{}),
	}
	go p.sweep()
	return p
}

// Acquire borrows a handle for key, reusing a validated idle entry or
// dialing a new one. At capacity it evicts the least-recently-used idle
// entry before failing with ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context, key Key) (*Entry, error) {
	// A permit bounds the number of concurrently borrowed handles.
	// Rejection, not queueing: a full pool is backpressure the caller
	// must handle.
	if !p.sem.TryAcquire(1) {
		return nil, ErrPoolExhausted
	}

	entry, err := p.acquire(ctx, key)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return entry, nil
}

func (p *Pool) acquire(ctx context.Context, key Key) (*Entry, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	now := p.cfg.Clock()

	// Borrow-then-validate-then-use: a matching idle entry is only
	// handed out after it passes validation; failures are discarded
	// in place.
	for i := 0; i < len(p.entries); {
		e := p.entries[i]
		if e.inUse || e.key != key {
			i++
			continue
		}
		if !p.usable(e, now) {
			p.removeLocked(i)
			_ = e.conn.Close()
			continue
		}
		e.inUse = true
		e.lastUsed = now
		e.uses++
		p.mu.Unlock()
		return e, nil
	}

	// No reusable entry. Make room if the retained set is full.
	if len(p.entries) >= p.cfg.MaxSize {
		if !p.evictLRULocked() {
			p.mu.Unlock()
			return nil, ErrPoolExhausted
		}
	}

	// Dial outside the lock; connecting can block.
	p.mu.Unlock()
	conn, err := p.cfg.Dial(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("pool: dial %s: %w", key, err)
	}

	entry := &Entry{
		key:       key,
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
		uses:      1,
		inUse:     true,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return nil, ErrPoolClosed
	}
	p.entries = append(p.entries, entry)
	p.mu.Unlock()
	return entry, nil
}

// Release returns a borrowed entry. The handle is validated first;
// dead or aged-out handles are discarded, never returned to the pool.
func (p *Pool) Release(e *Entry) {
	if e == nil {
		return
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	e.inUse = false
	e.lastUsed = p.cfg.Clock()

	if p.closed || !p.usable(e, e.lastUsed) {
		for i, cand := range p.entries {
			if cand == e {
				p.removeLocked(i)
				break
			}
		}
		_ = e.conn.Close()
	}
}

// WithConn acquires a handle, runs fn with it, and guarantees release.
func (p *Pool) WithConn(ctx context.Context, key Key, fn func(Conn) error) error {
	entry, err := p.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer p.Release(entry)
	return fn(entry.Conn())
}

// Len returns the number of retained entries, borrowed or idle.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close stops the sweep and closes every idle handle. Borrowed handles
// are closed as they are released.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stop) })

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.inUse {
			kept = append(kept, e)
			continue
		}
		_ = e.conn.Close()
	}
	p.entries = kept
}

// usable reports whether a handle may still be handed out.
func (p *Pool) usable(e *Entry, now time.Time) bool {
	return e.conn.Alive() && now.Sub(e.createdAt) < p.cfg.MaxAge
}

// evictLRULocked removes the least-recently-used idle entry. It
// reports false when every entry is borrowed.
func (p *Pool) evictLRULocked() bool {
	lru := -1
	for i, e := range p.entries {
		if e.inUse {
			continue
		}
		if lru == -1 || e.lastUsed.Before(p.entries[lru].lastUsed) {
			lru = i
		}
	}
	if lru == -1 {
		return false
	}
	victim := p.entries[lru]
	p.removeLocked(lru)
	_ = victim.conn.Close()
	return true
}

func (p *Pool) removeLocked(i int) {
	p.entries[i] = p.entries[len(p.entries)-1]
	p.entries = p.entries[:len(p.entries)-1]
}

// sweep evicts idle-too-long and aged-out entries on a fixed interval.
// Borrowed entries are never touched, so eviction cannot race an
// in-flight use.
func (p *Pool) sweep() {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			now := p.cfg.Clock()
			for i := 0; i < len(p.entries); {
				e := p.entries[i]
				if e.inUse {
					i++
					continue
				}
				if now.Sub(e.lastUsed) > p.cfg.MaxIdle || now.Sub(e.createdAt) >= p.cfg.MaxAge || !e.conn.Alive() {
					p.removeLocked(i)
					_ = e.conn.Close()
					continue
				}
				i++
			}
			p.mu.Unlock()
		}
	}
}
