// Package cache holds the process-lifetime caches of the aggregator and the
// redis mirror of published snapshots.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with the time it was stored.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// EntryCache is a keyed cache whose entries expire individually after ttl.
// Expired entries are kept so callers can fall back to them.
type EntryCache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewEntryCache creates an EntryCache with the given per-entry ttl.
func NewEntryCache[V any](ttl time.Duration) *EntryCache[V] {
	return &EntryCache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry[V]),
	}
}

// WithClock replaces the time source. Used by tests.
func (c *EntryCache[V]) WithClock(now func() time.Time) *EntryCache[V] {
	c.now = now
	return c
}

// TTL returns the per-entry lifetime.
func (c *EntryCache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if it is younger than the ttl.
func (c *EntryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.StoredAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// GetStale returns the entry for key regardless of its age.
func (c *EntryCache[V]) GetStale(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores value under key with the current time.
func (c *EntryCache[V]) Put(key string, value V) {
	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: value, StoredAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops key.
func (c *EntryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *EntryCache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or not.
func (c *EntryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// UnitCache holds a single value that is replaced and expires as a whole.
type UnitCache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	entry *Entry[V]
}

// NewUnitCache creates a UnitCache with the given ttl.
func NewUnitCache[V any](ttl time.Duration) *UnitCache[V] {
	return &UnitCache[V]{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (c *UnitCache[V]) WithClock(now func() time.Time) *UnitCache[V] {
	c.now = now
	return c
}

// Get returns the value if one is stored and younger than the ttl.
func (c *UnitCache[V]) Get() (V, bool) {
	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()

	if e == nil || c.now().Sub(e.StoredAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Last returns the most recently stored value regardless of its age.
func (c *UnitCache[V]) Last() (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry[V]{}, false
	}
	return *c.entry, true
}

// Put replaces the stored value.
func (c *UnitCache[V]) Put(value V) {
	c.mu.Lock()
	c.entry = &Entry[V]{Value: value, StoredAt: c.now()}
	c.mu.Unlock()
}

// Invalidate marks the stored value as expired without dropping it, so Last
// still returns it.
func (c *UnitCache[V]) Invalidate() {
	c.mu.Lock()
	if c.entry != nil {
		c.entry.StoredAt = time.Time{}
	}
	c.mu.Unlock()
}
