package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.Registry = (*registry)(nil)

type registry struct {
	store *Store
}

// chunkMetadata is the JSON shape chunk metadata is persisted in. It is
// a private mirror of domain.ChunkMetadata so the domain type stays
// free of serialization tags.
type chunkMetadata struct {
	SourceKind  int           `json:"source_kind"`
	SourceValue string        `json:"source_value"`
	Pairs       []domain.Pair `json:"pairs,omitempty"`
	Language    string        `json:"language,omitempty"`
	ParseMethod string        `json:"parse_method,omitempty"`
}

// GetDocument returns the record for id, or domain.ErrNotFound.
func (r *registry) GetDocument(ctx context.Context, id domain.DocumentID) (domain.DocumentRecord, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, source_kind, source_value, content_hash, size, mod_time,
		       options_fp, state, title, mime_type, parse_method, page_count,
		       error, created_at, updated_at
		FROM documents WHERE id = ?
	`, string(id))
	return r.scanDocument(ctx, row)
}

// GetDocumentBySource returns the most recent record for source, or
// domain.ErrNotFound if source has never been indexed.
func (r *registry) GetDocumentBySource(ctx context.Context, source domain.Source) (domain.DocumentRecord, error) {
	source = source.Normalize()
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, source_kind, source_value, content_hash, size, mod_time,
		       options_fp, state, title, mime_type, parse_method, page_count,
		       error, created_at, updated_at
		FROM documents
		WHERE source_kind = ? AND source_value = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, int(source.Kind), source.Value)
	return r.scanDocument(ctx, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *registry) scanDocument(ctx context.Context, row rowScanner) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var id, hashHex string
	var sourceKind, state int
	if err := row.Scan(
		&id, &sourceKind, &rec.Source.Value, &hashHex, &rec.Fingerprint.Size,
		&rec.Fingerprint.ModTime, &rec.OptionsFP, &state, &rec.Title,
		&rec.MimeType, &rec.ParseMethod, &rec.PageCount, &rec.Error,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.DocumentRecord{}, domain.ErrNotFound
		}
		return domain.DocumentRecord{}, fmt.Errorf("sqlite: scanning document: %w", err)
	}

	rec.ID = domain.DocumentID(id)
	rec.Source.Kind = domain.SourceKind(sourceKind)
	rec.State = domain.DocumentState(state)

	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != sha256.Size {
		return domain.DocumentRecord{}, fmt.Errorf("sqlite: corrupt content hash for document %s", id)
	}
	copy(rec.Fingerprint.Hash[:], raw)

	chunkIDs, err := r.chunkIDsFor(ctx, rec.ID)
	if err != nil {
		return domain.DocumentRecord{}, err
	}
	rec.ChunkIDs = chunkIDs

	return rec, nil
}

func (r *registry) chunkIDsFor(ctx context.Context, id domain.DocumentID) ([]domain.ChunkID, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id FROM chunks WHERE document_id = ? ORDER BY ordinal
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chunk ids: %w", err)
	}
	defer rows.Close()

	var out []domain.ChunkID
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chunk id: %w", err)
		}
		out = append(out, domain.ChunkID(cid))
	}
	return out, rows.Err()
}

// PutDocument upserts a record by ID.
func (r *registry) PutDocument(ctx context.Context, rec domain.DocumentRecord) error {
	source := rec.Source.Normalize()
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_kind, source_value, content_hash, size,
			mod_time, options_fp, state, title, mime_type, parse_method,
			page_count, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			size         = excluded.size,
			mod_time     = excluded.mod_time,
			options_fp   = excluded.options_fp,
			state        = excluded.state,
			title        = excluded.title,
			mime_type    = excluded.mime_type,
			parse_method = excluded.parse_method,
			page_count   = excluded.page_count,
			error        = excluded.error,
			updated_at   = excluded.updated_at
	`, string(rec.ID), int(source.Kind), source.Value, rec.Fingerprint.String(),
		rec.Fingerprint.Size, rec.Fingerprint.ModTime, rec.OptionsFP,
		int(rec.State), rec.Title, rec.MimeType, rec.ParseMethod,
		rec.PageCount, rec.Error, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: saving document: %w", err)
	}
	return nil
}

// SetState transitions a record's lifecycle state, recording errMsg as
// its diagnostic.
func (r *registry) SetState(ctx context.Context, id domain.DocumentID, state domain.DocumentState, errMsg string) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE documents SET state = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, int(state), errMsg, time.Now(), string(id))
	if err != nil {
		return fmt.Errorf("sqlite: setting document state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a record; its chunk rows go with it via the
// ON DELETE CASCADE foreign key.
func (r *registry) DeleteDocument(ctx context.Context, id domain.DocumentID) error {
	_, err := r.store.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("sqlite: deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns records matching filter in creation order.
func (r *registry) ListDocuments(ctx context.Context, filter driven.DocumentFilter) ([]domain.DocumentRecord, error) {
	query := `
		SELECT id, source_kind, source_value, content_hash, size, mod_time,
		       options_fp, state, title, mime_type, parse_method, page_count,
		       error, created_at, updated_at
		FROM documents`
	var args []any
	if len(filter.States) > 0 {
		placeholders := strings.Repeat("?,", len(filter.States))
		query += ` WHERE state IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, s := range filter.States {
			args = append(args, int(s))
		}
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentRecord
	for rows.Next() {
		rec, err := r.scanDocument(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutChunks durably stores chunks. Chunks are immutable once written;
// the upsert only exists so Recover can replay a registry write that
// crashed between its first and last row.
func (r *registry) PutChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning chunk transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, c := range chunks {
		meta, err := json.Marshal(chunkMetadata{
			SourceKind:  int(c.Metadata.Source.Kind),
			SourceValue: c.Metadata.Source.Value,
			Pairs:       c.Metadata.Pairs,
			Language:    c.Metadata.Language,
			ParseMethod: c.Metadata.ParseMethod,
		})
		if err != nil {
			return fmt.Errorf("sqlite: encoding chunk metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, ordinal, text, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				text     = excluded.text,
				metadata = excluded.metadata
		`, string(c.ID), string(c.DocumentID), c.Ordinal, c.Text, string(meta), now); err != nil {
			return fmt.Errorf("sqlite: saving chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunks returns every chunk owned by doc, in ordinal order.
func (r *registry) GetChunks(ctx context.Context, doc domain.DocumentID) ([]domain.Chunk, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, text, metadata
		FROM chunks WHERE document_id = ? ORDER BY ordinal
	`, string(doc))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

// GetChunk returns one chunk by ID, or domain.ErrNotFound.
func (r *registry) GetChunk(ctx context.Context, id domain.ChunkID) (domain.Chunk, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, ordinal, text, metadata FROM chunks WHERE id = ?
	`, string(id))
	chunk, err := scanChunk(row)
	if err != nil {
		return domain.Chunk{}, err
	}
	return chunk, nil
}

func scanChunk(row rowScanner) (domain.Chunk, error) {
	var c domain.Chunk
	var id, docID, metaJSON string
	if err := row.Scan(&id, &docID, &c.Ordinal, &c.Text, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return domain.Chunk{}, domain.ErrNotFound
		}
		return domain.Chunk{}, fmt.Errorf("sqlite: scanning chunk: %w", err)
	}
	c.ID = domain.ChunkID(id)
	c.DocumentID = domain.DocumentID(docID)

	var meta chunkMetadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return domain.Chunk{}, fmt.Errorf("sqlite: decoding chunk metadata: %w", err)
	}
	c.Metadata = domain.ChunkMetadata{
		Source:      domain.Source{Kind: domain.SourceKind(meta.SourceKind), Value: meta.SourceValue},
		Pairs:       meta.Pairs,
		Language:    meta.Language,
		ParseMethod: meta.ParseMethod,
	}
	return c, nil
}

// DeleteChunks removes the given chunks.
func (r *registry) DeleteChunks(ctx context.Context, ids []domain.ChunkID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	_, err := r.store.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: deleting chunks: %w", err)
	}
	return nil
}
