package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// entryOverhead approximates the per-entry cost beyond key and value bytes
// (map slot, entry pointer, expiry timestamp).
const entryOverhead = 64

// MemoryCache is an in-memory result cache with TTL expiry.
//
// Expired entries are dropped lazily on Get and actively by Sweep or the
// janitor started with StartJanitor.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry

	hits   atomic.Uint64
	misses atomic.Uint64

	now     func() time.Time
	onSweep func(removed int)

	janitorMu sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// cacheEntry is immutable once stored; Put replaces the pointer.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock overrides the time source. Used for simulated time in tests.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSweepHook registers fn to be called after every janitor sweep that
// removed at least one entry.
func WithSweepHook(fn func(removed int)) Option {
	return func(c *MemoryCache) {
		c.onSweep = fn
	}
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and not past its expiry.
// Callers must not modify the returned slice.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !now.After(entry.expiresAt) {
		c.hits.Add(1)
		return entry.value, true
	}

	c.misses.Add(1)

	if ok {
		// Expired - clean up lazily unless a concurrent Put refreshed it.
		c.mu.Lock()
		if cur, still := c.entries[key]; still && now.After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	return nil, false
}

// Put stores value under key, overwriting any previous entry.
func (c *MemoryCache) Put(_ context.Context, key string, value []byte, ttl time.Duration) {
	entry := &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Sweep removes entries whose expiry is at or before now.
func (c *MemoryCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes every entry. Hit/miss counters are kept.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// ResetStats zeroes the hit and miss counters.
func (c *MemoryCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	var size int64
	for key, entry := range c.entries {
		size += int64(len(key) + len(entry.value) + entryOverhead)
	}
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Entries:        n,
		EstimatedBytes: size,
	}
}

// StartJanitor sweeps expired entries every interval until ctx is done or
// Close is called. Calling it again replaces the running janitor.
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	c.janitorMu.Lock()
	defer c.janitorMu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 && c.onSweep != nil {
					c.onSweep(removed)
				}
			}
		}
	}()
}

// Close stops the janitor, if any, and waits for it to exit.
// Close is safe to call multiple times.
func (c *MemoryCache) Close() error {
	c.janitorMu.Lock()
	defer c.janitorMu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()
	return nil
}

// Ensure MemoryCache implements Store
var _ Store = (*MemoryCache)(nil)
