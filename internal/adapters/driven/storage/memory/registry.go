package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.Registry = (*Registry)(nil)

// Registry is an in-memory implementation of driven.Registry.
type Registry struct {
	mu        sync.RWMutex
	documents map[domain.DocumentID]domain.DocumentRecord
	chunks    map[domain.ChunkID]domain.Chunk
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		documents: make(map[domain.DocumentID]domain.DocumentRecord),
		chunks:    make(map[domain.ChunkID]domain.Chunk),
	}
}

// GetDocument returns the record for id, or domain.ErrNotFound.
func (r *Registry) GetDocument(_ context.Context, id domain.DocumentID) (domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.documents[id]
	if !ok {
		return domain.DocumentRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// GetDocumentBySource returns the most recently updated record for
// source, or domain.ErrNotFound.
func (r *Registry) GetDocumentBySource(_ context.Context, source domain.Source) (domain.DocumentRecord, error) {
	source = source.Normalize()
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best domain.DocumentRecord
	found := false
	for _, rec := range r.documents {
		if rec.Source.Normalize() != source {
			continue
		}
		if !found || rec.UpdatedAt.After(best.UpdatedAt) {
			best = rec
			found = true
		}
	}
	if !found {
		return domain.DocumentRecord{}, domain.ErrNotFound
	}
	return best, nil
}

// PutDocument upserts a record by ID.
func (r *Registry) PutDocument(_ context.Context, rec domain.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[rec.ID] = rec
	return nil
}

// SetState transitions a record's lifecycle state.
func (r *Registry) SetState(_ context.Context, id domain.DocumentID, state domain.DocumentState, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.State = state
	rec.Error = errMsg
	rec.UpdatedAt = time.Now()
	r.documents[id] = rec
	return nil
}

// DeleteDocument removes a record and its chunk rows.
func (r *Registry) DeleteDocument(_ context.Context, id domain.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.documents, id)
	for cid, c := range r.chunks {
		if c.DocumentID == id {
			delete(r.chunks, cid)
		}
	}
	return nil
}

// ListDocuments returns records matching filter, sorted by creation
// time for a stable iteration order.
func (r *Registry) ListDocuments(_ context.Context, filter driven.DocumentFilter) ([]domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DocumentRecord, 0, len(r.documents))
	for _, rec := range r.documents {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PutChunks stores chunks.
func (r *Registry) PutChunks(_ context.Context, chunks []domain.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.chunks[c.ID] = c
	}
	return nil
}

// GetChunks returns every chunk owned by doc, in ordinal order.
func (r *Registry) GetChunks(_ context.Context, doc domain.DocumentID) ([]domain.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Chunk
	for _, c := range r.chunks {
		if c.DocumentID == doc {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

// GetChunk returns one chunk by ID, or domain.ErrNotFound.
func (r *Registry) GetChunk(_ context.Context, id domain.ChunkID) (domain.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chunks[id]
	if !ok {
		return domain.Chunk{}, domain.ErrNotFound
	}
	return c, nil
}

// DeleteChunks removes the given chunks.
func (r *Registry) DeleteChunks(_ context.Context, ids []domain.ChunkID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.chunks, id)
	}
	return nil
}
