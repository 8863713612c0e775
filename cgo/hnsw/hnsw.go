//go:build cgo

package hnsw

/*
#cgo CXXFLAGS: -std=c++17 -O3 -I${SRCDIR}/../../clib/build/_deps/hnswlib-src
#cgo LDFLAGS: -lstdc++

#include "hnsw_wrapper.h"
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"errors"
	"sync"
	"unsafe"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorAdapter = (*Index)(nil)

// Default configuration values
const (
	DefaultMaxElements = 100000
)

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

// Index provides vector similarity search using HNSWlib. HNSWlib itself
// has no notion of "document" grouping, so Index keeps a small in-memory
// side index from DocumentID to the ChunkIDs it owns, so Delete(docID)
// can translate into the per-chunk hnsw_delete calls the C library
// actually supports.
type Index struct {
	mu        sync.RWMutex
	idx       *C.HnswIndex
	path      string
	dimension int
	precision Precision
	byDoc     map[domain.DocumentID]map[domain.ChunkID]struct{}
	chunkDoc  map[domain.ChunkID]domain.DocumentID
	count     int
}

// New creates or opens an HNSW index with the specified storage precision.
// The precision parameter only affects disk storage; runtime always uses float32.
func New(path string, dimension int, precision Precision) (*Index, error) {
	if path == "" {
		return nil, errors.New("hnsw: path cannot be empty")
	}
	if dimension <= 0 {
		return nil, errors.New("hnsw: dimension must be positive")
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	// Try to open existing index first
	idx := C.hnsw_open(cpath, C.int(dimension))
	if idx == nil {
		// Create new index with specified precision
		idx = C.hnsw_create(cpath, C.int(dimension), C.int(DefaultMaxElements), C.HnswPrecision(precision))
		if idx == nil {
			return nil, errors.New("hnsw: failed to create index")
		}
	}

	return &Index{
		idx:       idx,
		path:      path,
		dimension: dimension,
		precision: precision,
		byDoc:     make(map[domain.DocumentID]map[domain.ChunkID]struct{}),
		chunkDoc:  make(map[domain.ChunkID]domain.DocumentID),
	}, nil
}

// Add inserts vectors for the given chunks, one hnsw_add call each.
func (idx *Index) Add(ctx context.Context, chunks []driven.ChunkWrite) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.idx == nil {
		return errors.New("hnsw: index is closed")
	}

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(c.Embedding) != idx.dimension {
			return domain.ErrDimensionMismatch
		}

		cChunkID := C.CString(string(c.ChunkID))
		result := C.hnsw_add(
			idx.idx,
			cChunkID,
			(*C.float)(unsafe.Pointer(&c.Embedding[0])),
			C.int(idx.dimension),
		)
		C.free(unsafe.Pointer(cChunkID))

		if result != 0 {
			return errors.New("hnsw: failed to add vector")
		}
		idx.track(c.DocumentID, c.ChunkID)
	}

	return nil
}

func (idx *Index) track(doc domain.DocumentID, chunk domain.ChunkID) {
	if _, ok := idx.chunkDoc[chunk]; !ok {
		idx.count++
	}
	idx.chunkDoc[chunk] = doc
	set, ok := idx.byDoc[doc]
	if !ok {
		set = make(map[domain.ChunkID]struct{})
		idx.byDoc[doc] = set
	}
	set[chunk] = struct{}{}
}

func (idx *Index) untrack(chunk domain.ChunkID) {
	doc, ok := idx.chunkDoc[chunk]
	if !ok {
		return
	}
	delete(idx.chunkDoc, chunk)
	idx.count--
	if set, ok := idx.byDoc[doc]; ok {
		delete(set, chunk)
		if len(set) == 0 {
			delete(idx.byDoc, doc)
		}
	}
}

// Delete removes every chunk belonging to doc.
func (idx *Index) Delete(_ context.Context, doc domain.DocumentID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.idx == nil {
		return errors.New("hnsw: index is closed")
	}

	set, ok := idx.byDoc[doc]
	if !ok {
		return nil
	}
	for chunkID := range set {
		cChunkID := C.CString(string(chunkID))
		result := C.hnsw_delete(idx.idx, cChunkID)
		C.free(unsafe.Pointer(cChunkID))
		if result != 0 {
			return errors.New("hnsw: failed to delete vector")
		}
		idx.untrack(chunkID)
	}

	return nil
}

// Search finds the topK nearest neighbours to query, optionally
// restricted to the given document IDs (filtered client-side after the
// native search, since HNSWlib has no doc-scoped query primitive).
func (idx *Index) Search(_ context.Context, query []float32, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.idx == nil {
		return nil, errors.New("hnsw: index is closed")
	}

	if len(query) != idx.dimension {
		return nil, domain.ErrDimensionMismatch
	}

	if topK <= 0 {
		return nil, nil
	}

	// over-fetch when filtering, since native results aren't doc-aware
	fetchK := topK
	var allow map[domain.DocumentID]struct{}
	if len(filter) > 0 {
		allow = make(map[domain.DocumentID]struct{}, len(filter))
		for _, d := range filter {
			allow[d] = struct{}{}
		}
		fetchK = topK * 8
		if fetchK > idx.count {
			fetchK = idx.count
		}
		if fetchK < topK {
			fetchK = topK
		}
	}

	var results *C.HnswSearchResult
	count := C.hnsw_search(
		idx.idx,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.int(idx.dimension),
		C.int(fetchK),
		&results,
	)

	if count < 0 {
		return nil, errors.New("hnsw: search failed")
	}

	if count == 0 || results == nil {
		return nil, nil
	}

	defer C.hnsw_free_results(results, count)

	cResults := unsafe.Slice(results, int(count))

	hits := make([]domain.Hit, 0, int(count))
	for i := 0; i < int(count); i++ {
		chunkID := domain.ChunkID(C.GoString(cResults[i].chunk_id))
		if allow != nil {
			doc, ok := idx.chunkDoc[chunkID]
			if !ok || !containsDoc(allow, doc) {
				continue
			}
		}
		hits = append(hits, domain.Hit{
			ChunkID: chunkID,
			Score:   float64(cResults[i].similarity),
		})
		if len(hits) == topK {
			break
		}
	}

	return hits, nil
}

func containsDoc(allow map[domain.DocumentID]struct{}, doc domain.DocumentID) bool {
	_, ok := allow[doc]
	return ok
}

// Count returns the number of indexed chunks.
func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count, nil
}

// Exists reports whether id is indexed.
func (idx *Index) Exists(_ context.Context, id domain.ChunkID) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.chunkDoc[id]
	return ok, nil
}

// ListDocuments returns every DocumentID with at least one indexed chunk.
func (idx *Index) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]domain.DocumentID, 0, len(idx.byDoc))
	for doc := range idx.byDoc {
		out = append(out, doc)
	}
	return out, nil
}

// Dimensions returns the fixed embedding width this index was created with.
func (idx *Index) Dimensions() int {
	return idx.dimension
}

// Close releases resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.idx != nil {
		C.hnsw_close(idx.idx)
		idx.idx = nil
	}

	return nil
}
