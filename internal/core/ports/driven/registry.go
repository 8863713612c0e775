package driven

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// DocumentFilter restricts and pages a registry listing. Zero values
// mean "no restriction": empty States matches every state, Limit 0
// means unbounded.
type DocumentFilter struct {
	States []domain.DocumentState
	Limit  int
	Offset int
}

// Matches reports whether rec passes the filter's state restriction.
func (f DocumentFilter) Matches(rec domain.DocumentRecord) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if rec.State == s {
			return true
		}
	}
	return false
}

// Registry is the single source of truth for what is, or should be,
// indexed: document records and the immutable chunks they own. The
// Vector and Keyword adapters hold derived copies of chunk text for
// search; the Registry is what Repair and verify_consistency compare
// them against.
type Registry interface {
	// GetDocument returns the record for id, or domain.ErrNotFound.
	GetDocument(ctx context.Context, id domain.DocumentID) (domain.DocumentRecord, error)

	// GetDocumentBySource returns the most recent record for source, or
	// domain.ErrNotFound if source has never been indexed.
	GetDocumentBySource(ctx context.Context, source domain.Source) (domain.DocumentRecord, error)

	// PutDocument upserts a record by ID.
	PutDocument(ctx context.Context, rec domain.DocumentRecord) error

	// SetState transitions a record's lifecycle state, recording errMsg
	// as its diagnostic (empty clears a prior one).
	SetState(ctx context.Context, id domain.DocumentID, state domain.DocumentState, errMsg string) error

	// DeleteDocument removes a record and its chunk rows.
	DeleteDocument(ctx context.Context, id domain.DocumentID) error

	// ListDocuments returns records matching filter in creation order;
	// the zero filter returns everything.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.DocumentRecord, error)

	// PutChunks durably stores chunks. Chunks are immutable once
	// written: callers never update an existing ChunkID's Text.
	PutChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks returns every chunk owned by doc, in ordinal order.
	GetChunks(ctx context.Context, doc domain.DocumentID) ([]domain.Chunk, error)

	// GetChunk returns one chunk by ID, or domain.ErrNotFound.
	GetChunk(ctx context.Context, id domain.ChunkID) (domain.Chunk, error)

	// DeleteChunks removes the given chunks.
	DeleteChunks(ctx context.Context, ids []domain.ChunkID) error
}
