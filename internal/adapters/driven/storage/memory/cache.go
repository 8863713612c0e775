package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.ArtifactCache = (*ArtifactCache)(nil)

// ArtifactCache is an in-memory implementation of driven.ArtifactCache.
type ArtifactCache struct {
	mu      sync.RWMutex
	entries map[driven.ArtifactKey]cacheEntry

	// hits counts Get calls served from the cache, surfaced via Stats-
	// adjacent test helpers to assert "no second extraction" behaviour.
	hits int64
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewArtifactCache creates an empty in-memory artifact cache.
func NewArtifactCache() *ArtifactCache {
	return &ArtifactCache{entries: make(map[driven.ArtifactKey]cacheEntry)}
}

// Get returns the cached value for key, or domain.ErrNotFound if absent
// or expired.
func (c *ArtifactCache) Get(_ context.Context, key driven.ArtifactKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, domain.ErrNotFound
	}
	c.hits++
	return e.value, nil
}

// Put stores value under key with the given TTL from now.
func (c *ArtifactCache) Put(_ context.Context, key driven.ArtifactKey, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Sweep deletes every entry whose expiry has passed, returning the
// count removed.
func (c *ArtifactCache) Sweep(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Clear deletes every entry regardless of expiry.
func (c *ArtifactCache) Clear(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[driven.ArtifactKey]cacheEntry)
	return n, nil
}

// Stats reports entry count and total bytes.
func (c *ArtifactCache) Stats(_ context.Context) (entries int, bytes int64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		bytes += int64(len(e.value))
	}
	return len(c.entries), bytes, nil
}

// Hits reports how many Get calls were served from the cache, for tests.
func (c *ArtifactCache) Hits() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}
