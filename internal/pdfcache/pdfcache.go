// Package pdfcache implements a content-addressed, reference-counted
// on-disk cache for downloaded PDF bytes. Identical content downloaded
// under different external identifiers is stored once.
package pdfcache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores PDF blobs on disk keyed by their SHA-256 content hash, with
// a reference count per external id. A blob is removed from disk as soon
// as no id references it. Referenced blobs are never evicted, so maxBytes
// does not bound their total size.
type Cache struct {
	dir      string
	maxBytes int64

	mu       sync.Mutex
	refs     map[string]map[string]struct{} // hash -> set of ids referencing it
	idToHash map[string]string               // id -> hash
	sizes    map[string]int64                // hash -> blob size
	totalSz  int64
	evictQ   *lru.Cache[string, struct{}] // hash -> recency order, only unreferenced hashes tracked
}

// New builds a Cache rooted at dir. maxBytes is checked after each Store,
// but only unreferenced blobs are eviction candidates, so the stored total
// can exceed it.
func New(dir string, maxBytes int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// capacity is unbounded; eviction is driven by maxBytes, not entry count
	evictQ, _ := lru.New[string, struct{}](1 << 30)
	return &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		refs:     make(map[string]map[string]struct{}),
		idToHash: make(map[string]string),
		sizes:    make(map[string]int64),
		evictQ:   evictQ,
	}, nil
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash[:2], hash)
}

// Store writes bytes under id, deduplicating against any existing blob
// with the same content hash. Safe to call again for an id already
// stored under the same content.
func (c *Cache) Store(id string, data []byte) error {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()

	if oldHash, ok := c.idToHash[id]; ok && oldHash != hash {
		c.dropRef(oldHash, id)
	}

	if _, exists := c.sizes[hash]; !exists {
		p := c.path(hash)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return err
		}
		c.sizes[hash] = int64(len(data))
		c.totalSz += int64(len(data))
	}

	if c.refs[hash] == nil {
		c.refs[hash] = make(map[string]struct{})
	}
	c.refs[hash][id] = struct{}{}
	c.idToHash[id] = hash
	c.evictQ.Remove(hash) // referenced blobs are never eviction candidates

	c.evictIfOverCapacity()
	return nil
}

// Get returns the blob stored for id, or ok=false if unknown.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	hash, ok := c.idToHash[id]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Delete removes id's reference to its blob. The blob itself is removed
// from disk as soon as no id references it.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, ok := c.idToHash[id]
	if !ok {
		return
	}
	c.dropRef(hash, id)
}

// dropRef must be called with mu held. A hash whose reference count
// reaches zero is removed from disk immediately, independent of
// maxBytes: the blob's lifetime is governed by its reference count, not
// by the capacity-driven LRU eviction below.
func (c *Cache) dropRef(hash, id string) {
	delete(c.idToHash, id)
	refs, ok := c.refs[hash]
	if !ok {
		return
	}
	delete(refs, id)
	if len(refs) == 0 {
		delete(c.refs, hash)
		c.evictQ.Remove(hash)
		c.removeBlob(hash)
	}
}

// removeBlob deletes hash's on-disk object and bookkeeping. Must be
// called with mu held.
func (c *Cache) removeBlob(hash string) {
	_ = os.Remove(c.path(hash))
	c.totalSz -= c.sizes[hash]
	delete(c.sizes, hash)
}

// evictIfOverCapacity removes unreferenced blobs, oldest first, until the
// cache is within maxBytes. Must be called with mu held. In practice
// dropRef already frees zero-refcount blobs as soon as they go
// unreferenced, so this only has work to do for callers that bypass
// dropRef (none currently do), so in practice it never removes a blob.
func (c *Cache) evictIfOverCapacity() {
	if c.maxBytes <= 0 {
		return
	}
	for c.totalSz > c.maxBytes {
		hash, _, ok := c.evictQ.GetOldest()
		if !ok {
			return
		}
		c.evictQ.Remove(hash)
		c.removeBlob(hash)
	}
}
