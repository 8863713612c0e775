package driven

import (
	"context"
	"time"
)

// ArtifactKey identifies one cached intermediate artifact of the ingest
// pipeline: the extraction result for a given content hash under a
// given options fingerprint. Keying on both means a chunk-size change
// correctly misses the cache instead of serving stale chunks.
type ArtifactKey struct {
	ContentHash string
	OptionsFP   string
	Stage       string // "extract" | "chunk" | "embed" | "augment"
}

// ArtifactCacheEntry is one stored artifact plus the bookkeeping the
// cache needs for TTL expiry and hit accounting.
type ArtifactCacheEntry struct {
	Key       ArtifactKey
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int64
}

// ArtifactCache memoizes expensive, deterministic pipeline stages keyed
// by content+options identity, so re-running add/update against
// unchanged bytes under unchanged options skips extraction, chunking,
// embedding, and augmentation entirely. Per the resolved
// open question, entries are never evicted on a document's removal —
// only TTL expiry (via Sweep) or an explicit Clear reclaims space,
// since the same bytes may reappear under a different Source later.
type ArtifactCache interface {
	// Get returns the cached value for key, or domain.ErrNotFound if
	// absent or expired.
	Get(ctx context.Context, key ArtifactKey) ([]byte, error)

	// Put stores value under key with the given TTL from now.
	Put(ctx context.Context, key ArtifactKey, value []byte, ttl time.Duration) error

	// Sweep deletes every entry whose ExpiresAt has passed, returning
	// the count removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Clear deletes every entry regardless of expiry, returning the
	// count removed. Always safe: entries are pure functions of their
	// key and rebuild on the next extraction.
	Clear(ctx context.Context) (int, error)

	// Stats reports entry count and total bytes, for `status --detailed`.
	Stats(ctx context.Context) (entries int, bytes int64, err error)
}
