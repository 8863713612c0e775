package driven

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// ChunkWrite is one chunk as written to an index adapter: the adapter
// stores Text (to serve as its own result payload) and Embedding, if
// it uses one, keyed by ChunkID.
type ChunkWrite struct {
	ChunkID    domain.ChunkID
	DocumentID domain.DocumentID
	Text       string
	Embedding  []float32
}

// VectorAdapter is the Vector Index port: nearest-neighbour search over
// chunk embeddings. Dimensions is fixed at store creation; Add refuses
// any embedding whose length mismatches it (domain.ErrDimensionMismatch).
type VectorAdapter interface {
	// Add writes or overwrites the given chunks' vectors.
	Add(ctx context.Context, chunks []ChunkWrite) error

	// Delete removes every chunk belonging to doc.
	Delete(ctx context.Context, doc domain.DocumentID) error

	// Search returns the topK nearest chunks to query, optionally
	// restricted to the given document IDs.
	Search(ctx context.Context, query []float32, topK int, filter []domain.DocumentID) ([]domain.Hit, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Exists reports whether id is indexed.
	Exists(ctx context.Context, id domain.ChunkID) (bool, error)

	// ListDocuments returns every DocumentID this adapter currently holds
	// at least one chunk for, so a consistency check can diff the set
	// against the Registry and find orphans in either direction.
	ListDocuments(ctx context.Context) ([]domain.DocumentID, error)

	// Dimensions returns the fixed embedding width this adapter was created with.
	Dimensions() int

	// Close releases underlying resources.
	Close() error
}

// KeywordAdapter is the Keyword Index port: BM25-style full-text search.
// It tokenizes and indexes on write, and returns raw, unnormalized scores.
type KeywordAdapter interface {
	// Add writes or overwrites the given chunks' text.
	Add(ctx context.Context, chunks []ChunkWrite) error

	// Delete removes every chunk belonging to doc.
	Delete(ctx context.Context, doc domain.DocumentID) error

	// Search returns the topK best-scoring chunks for query, optionally
	// restricted to the given document IDs.
	Search(ctx context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Exists reports whether id is indexed.
	Exists(ctx context.Context, id domain.ChunkID) (bool, error)

	// Params returns the configured BM25 (k1, b) constants.
	Params() (k1, b float64)

	// ListDocuments returns every DocumentID this adapter currently holds
	// at least one chunk for, so a consistency check can diff the set
	// against the Registry and find orphans in either direction.
	ListDocuments(ctx context.Context) ([]domain.DocumentID, error)

	// Close releases underlying resources.
	Close() error
}
