//go:build !cgo

package hnsw

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorAdapter = (*Index)(nil)

// Precision defines the storage precision for vectors.
// Runtime operations always use float32; this only affects disk storage.
type Precision int

const (
	// PrecisionFloat32 stores vectors at full precision (no compression).
	PrecisionFloat32 Precision = 0
	// PrecisionFloat16 stores vectors at half precision (50% storage savings).
	PrecisionFloat16 Precision = 1
	// PrecisionInt8 stores vectors at 8-bit precision (75% storage savings).
	PrecisionInt8 Precision = 2
)

// Index provides vector similarity search using HNSWlib.
// This is a stub for builds without CGO.
type Index struct {
	path      string
	dimension int
	precision Precision
}

// New creates or opens an HNSW index with the specified storage precision.
// This is a stub for builds without CGO.
func New(path string, dimension int, precision Precision) (*Index, error) {
	return &Index{
		path:      path,
		dimension: dimension,
		precision: precision,
	}, nil
}

func (idx *Index) Add(_ context.Context, _ []driven.ChunkWrite) error {
	return domain.ErrNotImplemented
}

func (idx *Index) Delete(_ context.Context, _ domain.DocumentID) error {
	return domain.ErrNotImplemented
}

func (idx *Index) Search(_ context.Context, _ []float32, _ int, _ []domain.DocumentID) ([]domain.Hit, error) {
	return nil, domain.ErrNotImplemented
}

func (idx *Index) Count(_ context.Context) (int, error) {
	return 0, domain.ErrNotImplemented
}

func (idx *Index) Exists(_ context.Context, _ domain.ChunkID) (bool, error) {
	return false, domain.ErrNotImplemented
}

func (idx *Index) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	return nil, domain.ErrNotImplemented
}

func (idx *Index) Dimensions() int {
	return idx.dimension
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}
