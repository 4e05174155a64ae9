package catalog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss indicates the key was not found in the cache.
var ErrCacheMiss = errors.New("catalog: cache miss")

// Cache persists the serialized catalog between refreshes. The memory
// backend suits single-instance deployments; the Redis backend lets a
// restarted process pre-warm from the last refresh.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-memory Cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get retrieves a value by key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	c.entries[key] = memoryEntry{value: v, expiresAt: time.Now().Add(ttl)}
	return nil
}
