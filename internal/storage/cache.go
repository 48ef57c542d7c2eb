package storage

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/maruel/xbase/internal/models"
)

type cacheEntry struct {
	data    []byte
	expires time.Time
}

// Cache keeps recently read objects in memory.
//
// Every Invalidate bumps the version of its key. A reader fetching an object
// from the backing store records the version first and stores the result with
// SetIfVersion, so a read that raced a write never caches the old bytes.
type Cache struct {
	mu      sync.RWMutex
	objects map[string]cacheEntry
	// Max size for LRU-like behavior (simplified: cleared when full).
	maxObjects int
	ttl        time.Duration
	// versions counts invalidations per key within the current epoch.
	versions map[string]uint64
	epoch    uint64
	now      func() time.Time
}

// CacheVersion identifies the invalidation state of a key.
type CacheVersion struct {
	epoch, n uint64
}

// NewCache initializes a new cache holding up to maxObjects objects, each for
// at most ttl. A zero ttl keeps objects until invalidated.
func NewCache(maxObjects int, ttl time.Duration) *Cache {
	if maxObjects <= 0 {
		maxObjects = 100
	}
	return &Cache{
		objects:    make(map[string]cacheEntry),
		maxObjects: maxObjects,
		ttl:        ttl,
		versions:   make(map[string]uint64),
		now:        time.Now,
	}
}

func cacheKey(bucket, p string) string {
	return bucket + "/" + strings.Trim(p, "/")
}

// Get returns a copy of a cached object.
func (c *Cache) Get(bucket, p string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.objects[cacheKey(bucket, p)]
	if !ok || (!e.expires.IsZero() && !c.now().Before(e.expires)) {
		return nil, false
	}
	return bytes.Clone(e.data), true
}

// Version returns the current version of an object's key.
func (c *Cache) Version(bucket, p string) CacheVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheVersion{c.epoch, c.versions[cacheKey(bucket, p)]}
}

// Set caches an object unconditionally.
func (c *Cache) Set(bucket, p string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(cacheKey(bucket, p), data)
}

// SetIfVersion caches an object only when its key was not invalidated since
// v was read. It reports whether the object was cached.
func (c *Cache) SetIfVersion(bucket, p string, data []byte, v CacheVersion) bool {
	k := cacheKey(bucket, p)
	c.mu.Lock()
	defer c.mu.Unlock()
	if v != (CacheVersion{c.epoch, c.versions[k]}) {
		return false
	}
	c.set(k, data)
	return true
}

func (c *Cache) set(k string, data []byte) {
	// Simple size limiting: clear if it grows too large
	if len(c.objects) >= c.maxObjects {
		c.objects = make(map[string]cacheEntry)
	}
	e := cacheEntry{data: bytes.Clone(data)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.objects[k] = e
}

// Invalidate removes an object from the cache.
func (c *Cache) Invalidate(bucket, p string) {
	k := cacheKey(bucket, p)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, k)
	c.versions[k]++
}

// InvalidateAll clears the entire cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects = make(map[string]cacheEntry)
	c.versions = make(map[string]uint64)
	c.epoch++
}

// Len returns the number of cached objects.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// CachedStore serves reads of a BlobStore from a Cache. Writes go through
// and invalidate the written object.
type CachedStore struct {
	store BlobStore
	cache *Cache
}

// NewCachedStore wraps store.
func NewCachedStore(store BlobStore, cache *Cache) *CachedStore {
	return &CachedStore{store: store, cache: cache}
}

// Cache returns the underlying cache.
func (s *CachedStore) Cache() *Cache {
	return s.cache
}

// Get implements BlobStore.
func (s *CachedStore) Get(ctx context.Context, bucket, p string) ([]byte, error) {
	if data, ok := s.cache.Get(bucket, p); ok {
		return data, nil
	}
	v := s.cache.Version(bucket, p)
	data, err := s.store.Get(ctx, bucket, p)
	if err != nil {
		return nil, err
	}
	s.cache.SetIfVersion(bucket, p, data, v)
	return data, nil
}

// Update implements BlobStore.
func (s *CachedStore) Update(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	defer s.cache.Invalidate(bucket, p)
	return s.store.Update(ctx, bucket, p, data, contentType)
}

// Create implements BlobStore.
func (s *CachedStore) Create(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	defer s.cache.Invalidate(bucket, p)
	return s.store.Create(ctx, bucket, p, data, contentType)
}

// History implements BlobStore.
func (s *CachedStore) History(ctx context.Context, bucket, p string, limit int) ([]models.Revision, error) {
	return s.store.History(ctx, bucket, p, limit)
}
