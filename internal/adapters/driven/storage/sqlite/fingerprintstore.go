package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.FingerprintStore = (*fingerprintStore)(nil)

type fingerprintStore struct {
	store *Store
}

func sourceKey(source domain.Source) string {
	return source.Normalize().String()
}

// Get returns the last recorded fingerprint for source, or
// domain.ErrNotFound if source has never been seen.
func (s *fingerprintStore) Get(ctx context.Context, source domain.Source) (domain.Fingerprint, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT content_hash, size, mod_time FROM fingerprints WHERE source_key = ?
	`, sourceKey(source))

	var hashHex string
	var fp domain.Fingerprint
	if err := row.Scan(&hashHex, &fp.Size, &fp.ModTime); err != nil {
		if err == sql.ErrNoRows {
			return domain.Fingerprint{}, domain.ErrNotFound
		}
		return domain.Fingerprint{}, fmt.Errorf("sqlite: scanning fingerprint: %w", err)
	}

	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != sha256.Size {
		return domain.Fingerprint{}, fmt.Errorf("sqlite: corrupt fingerprint hash for %s", source)
	}
	copy(fp.Hash[:], raw)

	return fp, nil
}

// Put durably records fp for source, overwriting any prior entry.
func (s *fingerprintStore) Put(ctx context.Context, source domain.Source, fp domain.Fingerprint) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO fingerprints (source_key, source_kind, source_value, content_hash, size, mod_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET
			content_hash = excluded.content_hash,
			size         = excluded.size,
			mod_time     = excluded.mod_time,
			updated_at   = excluded.updated_at
	`, sourceKey(source), int(source.Kind), source.Value, fp.String(), fp.Size, fp.ModTime, time.Now())
	if err != nil {
		return fmt.Errorf("sqlite: saving fingerprint: %w", err)
	}
	return nil
}

// Delete removes the recorded fingerprint for source.
func (s *fingerprintStore) Delete(ctx context.Context, source domain.Source) error {
	_, err := s.store.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE source_key = ?`, sourceKey(source))
	if err != nil {
		return fmt.Errorf("sqlite: deleting fingerprint: %w", err)
	}
	return nil
}

// Sweep deletes entries last updated at or before olderThan.
func (s *fingerprintStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE updated_at <= ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweeping fingerprints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting swept fingerprints: %w", err)
	}
	return int(n), nil
}

// List returns every known Source, for maintenance sweeps.
func (s *fingerprintStore) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT source_kind, source_value FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing fingerprints: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var kind int
		var value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scanning fingerprint source: %w", err)
		}
		out = append(out, domain.Source{Kind: domain.SourceKind(kind), Value: value})
	}
	return out, rows.Err()
}
