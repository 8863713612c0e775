package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.VectorAdapter = (*VectorIndex)(nil)

// VectorIndex is an in-memory driven.VectorAdapter scoring every stored
// embedding against the query by cosine similarity. Linear scan, no
// ANN structure: fine for tests and small corpora.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[domain.ChunkID][]float32
	chunkDoc  map[domain.ChunkID]domain.DocumentID
	byDoc     map[domain.DocumentID]map[domain.ChunkID]struct{}
}

// NewVectorIndex creates an empty index with the given fixed dimension.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{
		dimension: dimension,
		vectors:   make(map[domain.ChunkID][]float32),
		chunkDoc:  make(map[domain.ChunkID]domain.DocumentID),
		byDoc:     make(map[domain.DocumentID]map[domain.ChunkID]struct{}),
	}
}

// Add writes or overwrites the given chunks' vectors. Any embedding
// whose length mismatches the configured dimension is refused.
func (idx *VectorIndex) Add(_ context.Context, chunks []driven.ChunkWrite) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) != idx.dimension {
			return domain.ErrDimensionMismatch
		}
	}
	for _, c := range chunks {
		vec := append([]float32(nil), c.Embedding...)
		idx.vectors[c.ChunkID] = vec
		idx.chunkDoc[c.ChunkID] = c.DocumentID
		set, ok := idx.byDoc[c.DocumentID]
		if !ok {
			set = make(map[domain.ChunkID]struct{})
			idx.byDoc[c.DocumentID] = set
		}
		set[c.ChunkID] = struct{}{}
	}
	return nil
}

// Delete removes every chunk belonging to doc. Succeeds if none exist.
func (idx *VectorIndex) Delete(_ context.Context, doc domain.DocumentID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for chunkID := range idx.byDoc[doc] {
		delete(idx.vectors, chunkID)
		delete(idx.chunkDoc, chunkID)
	}
	delete(idx.byDoc, doc)
	return nil
}

// Search returns the topK most cosine-similar chunks to query,
// optionally restricted to the given document IDs.
func (idx *VectorIndex) Search(_ context.Context, query []float32, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		return nil, nil
	}

	var allow map[domain.DocumentID]struct{}
	if len(filter) > 0 {
		allow = make(map[domain.DocumentID]struct{}, len(filter))
		for _, d := range filter {
			allow[d] = struct{}{}
		}
	}

	hits := make([]domain.Hit, 0, len(idx.vectors))
	for chunkID, vec := range idx.vectors {
		if allow != nil {
			if _, ok := allow[idx.chunkDoc[chunkID]]; !ok {
				continue
			}
		}
		hits = append(hits, domain.Hit{ChunkID: chunkID, Score: cosine(query, vec)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (idx *VectorIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors), nil
}

// Exists reports whether id is indexed.
func (idx *VectorIndex) Exists(_ context.Context, id domain.ChunkID) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.vectors[id]
	return ok, nil
}

// ListDocuments returns every DocumentID with at least one indexed chunk.
func (idx *VectorIndex) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]domain.DocumentID, 0, len(idx.byDoc))
	for doc := range idx.byDoc {
		out = append(out, doc)
	}
	return out, nil
}

// Dimensions returns the fixed embedding width.
func (idx *VectorIndex) Dimensions() int {
	return idx.dimension
}

// Close releases nothing; it exists to satisfy the port.
func (idx *VectorIndex) Close() error {
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
