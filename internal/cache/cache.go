// Package cache implements the TTL+LRU response cache shared by the
// bibliographic source clients: papers, search results, and author
// records each get their own TTL class but share one bounded LRU store.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a size-bounded, TTL-aware LRU cache keyed by string. Eviction
// is delegated to hashicorp/golang-lru so "least-recently-touched" is
// exact, not approximated by a cleanup sweep.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *entry]
	clock func() time.Time
}

// New builds a Cache holding at most maxSize entries.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	l, _ := lru.New[string, *entry](maxSize)
	return &Cache{lru: l, clock: time.Now}
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &entry{value: value, expiresAt: c.clock().Add(ttl)})
}

// Get returns the value stored under key, or ok=false if absent or expired.
// An expired entry is evicted on read.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.clock().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Invalidate removes key unconditionally.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the current number of (possibly expired) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MultiIndex maps several external identifiers (DOI, arXiv ID, S2 ID) to
// the same underlying cache key, so a paper fetched by one identifier is
// visible under any of its known aliases.
type MultiIndex struct {
	mu      sync.Mutex
	alias   map[string]string // alias id -> canonical key
	cache   *Cache
}

// NewMultiIndex wraps an existing Cache with alias-based lookup.
func NewMultiIndex(c *Cache) *MultiIndex {
	return &MultiIndex{alias: make(map[string]string), cache: c}
}

// SetWithAliases stores value under canonicalKey and registers every id in
// aliases (including canonicalKey itself) as a lookup path to it.
func (m *MultiIndex) SetWithAliases(canonicalKey string, aliases []string, value interface{}, ttl time.Duration) {
	m.cache.Set(canonicalKey, value, ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range aliases {
		if a == "" {
			continue
		}
		m.alias[a] = canonicalKey
	}
	m.alias[canonicalKey] = canonicalKey
}

// Get resolves id through the alias table before consulting the cache.
func (m *MultiIndex) Get(id string) (interface{}, bool) {
	m.mu.Lock()
	canonical, ok := m.alias[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.cache.Get(canonical)
}
