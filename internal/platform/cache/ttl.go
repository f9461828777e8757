// Package cache provides the process-local TTL read cache and the Redis client used
// for shared session state.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a cached value is served before it must be rebuilt.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value    any
	storedAt time.Time
}

// TTL is a process-wide key/value cache whose entries expire a fixed time after they
// were set. Expired entries are removed when they are next read; there is no
// background sweep. Safe for concurrent use.
type TTL struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	gen     uint64 // bumped by every invalidation

	hits   uint64
	misses uint64
}

// Option configures a TTL cache.
type Option func(*TTL)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTL) { c.now = now }
}

// NewTTL creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func NewTTL(ttl time.Duration, opts ...Option) *TTL {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTL{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key, or false when it is absent or stale.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Lookup is Get with a type assertion. A value of another type counts as absent.
func Lookup[T any](c *TTL, key string) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set stores value under key, stamped with the current time.
func (c *TTL) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Generation identifies the current invalidation epoch. Read it before loading a
// value and pass it to SetAt.
func (c *TTL) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetAt stores value only if no invalidation happened since gen was read, so a
// rebuild that raced with a write cannot repopulate the cache with stale data.
func (c *TTL) SetAt(gen uint64, key string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = entry{value: value, storedAt: c.now()}
	return true
}

// Delete removes the given keys.
func (c *TTL) Delete(keys ...string) {
	c.mu.Lock()
	c.gen++
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
}

// DeleteFunc removes every key for which match returns true.
func (c *TTL) DeleteFunc(match func(key string) bool) {
	c.mu.Lock()
	c.gen++
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTL) Clear() {
	c.mu.Lock()
	c.gen++
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored entries, stale ones included.
func (c *TTL) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	TTL     string `json:"ttl"`
}

// Stats reports entry count and hit/miss counters.
func (c *TTL) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		TTL:     c.ttl.String(),
	}
}
