package sqlite

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.ArtifactCache = (*artifactCache)(nil)

type artifactCache struct {
	store *Store

	// compress gzips values at rest. Reads sniff the gzip magic bytes,
	// so toggling the option never invalidates existing entries.
	compress bool
}

// WithCompression returns a view of the cache that gzips values on Put.
func (c *artifactCache) WithCompression(on bool) *artifactCache {
	return &artifactCache{store: c.store, compress: on}
}

var gzipMagic = []byte{0x1f, 0x8b}

func maybeDecompress(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagic) {
		return value, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening compressed artifact: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decompressing artifact: %w", err)
	}
	return out, nil
}

func compressValue(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(value); err != nil {
		return nil, fmt.Errorf("sqlite: compressing artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("sqlite: flushing compressed artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// Get returns the cached value for key, or domain.ErrNotFound if absent
// or expired. An expired row is left for Sweep to reclaim rather than
// deleted inline; a hit increments the row's hit count.
func (c *artifactCache) Get(ctx context.Context, key driven.ArtifactKey) ([]byte, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT value, expires_at FROM artifacts
		WHERE content_hash = ? AND options_fp = ? AND stage = ?
	`, key.ContentHash, key.OptionsFP, key.Stage)

	var value []byte
	var expiresAt time.Time
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: scanning artifact: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, domain.ErrNotFound
	}

	if _, err := c.store.db.ExecContext(ctx, `
		UPDATE artifacts SET hit_count = hit_count + 1
		WHERE content_hash = ? AND options_fp = ? AND stage = ?
	`, key.ContentHash, key.OptionsFP, key.Stage); err != nil {
		return nil, fmt.Errorf("sqlite: bumping artifact hit count: %w", err)
	}

	return maybeDecompress(value)
}

// Put stores value under key with the given TTL from now.
func (c *artifactCache) Put(ctx context.Context, key driven.ArtifactKey, value []byte, ttl time.Duration) error {
	if c.compress {
		compressed, err := compressValue(value)
		if err != nil {
			return err
		}
		value = compressed
	}
	now := time.Now()
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO artifacts (content_hash, options_fp, stage, value, hit_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(content_hash, options_fp, stage) DO UPDATE SET
			value      = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key.ContentHash, key.OptionsFP, key.Stage, value, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("sqlite: saving artifact: %w", err)
	}
	return nil
}

// Sweep deletes every entry whose ExpiresAt has passed, returning the
// count removed.
func (c *artifactCache) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := c.store.db.ExecContext(ctx, `DELETE FROM artifacts WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweeping artifacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting swept artifacts: %w", err)
	}
	return int(n), nil
}

// Clear deletes every entry regardless of expiry.
func (c *artifactCache) Clear(ctx context.Context) (int, error) {
	res, err := c.store.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing artifacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cleared artifacts: %w", err)
	}
	return int(n), nil
}

// Stats reports entry count and total bytes, for `status --detailed`.
func (c *artifactCache) Stats(ctx context.Context) (entries int, bytes int64, err error) {
	row := c.store.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM artifacts`)
	if err := row.Scan(&entries, &bytes); err != nil {
		return 0, 0, fmt.Errorf("sqlite: stats: %w", err)
	}
	return entries, bytes, nil
}
