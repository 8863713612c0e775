//go:build cgo

package xapian

/*
#cgo pkg-config: xapian-core
#cgo CXXFLAGS: -std=c++17

#include "xapian_wrapper.h"
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

// Ensure Engine implements the interface.
var _ driven.KeywordAdapter = (*Engine)(nil)

// Default BM25 constants, applied by the underlying xapian_wrapper's
// BM25Weight scheme. The wrapper does not currently expose per-query k1/b
// tuning to C, so Params reports the configured values without altering
// xapian_search's behaviour — see DESIGN.md.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Engine provides full-text search using Xapian. Like HNSWlib, the C
// wrapper indexes per-chunk; Engine keeps a small doc-to-chunk side
// index so Delete(docID) and filtered Search can operate at document
// granularity.
type Engine struct {
	mu       sync.RWMutex
	db       C.xapian_db
	path     string
	k1, b    float64
	byDoc    map[domain.DocumentID]map[domain.ChunkID]struct{}
	chunkDoc map[domain.ChunkID]domain.DocumentID
	count    int
}

// New creates a new Xapian search engine with the default BM25 constants.
func New(path string) (*Engine, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	db := C.xapian_open(cpath)
	if db == nil {
		errMsg := C.GoString(C.xapian_get_error())
		return nil, errors.New("xapian: failed to open database: " + errMsg)
	}

	return &Engine{
		db:       db,
		path:     path,
		k1:       DefaultK1,
		b:        DefaultB,
		byDoc:    make(map[domain.DocumentID]map[domain.ChunkID]struct{}),
		chunkDoc: make(map[domain.ChunkID]domain.DocumentID),
	}, nil
}

// Add indexes or re-indexes the given chunks.
func (e *Engine) Add(ctx context.Context, chunks []driven.ChunkWrite) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return errors.New("xapian: database is closed")
	}

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		cChunkID := C.CString(string(c.ChunkID))
		cDocID := C.CString(string(c.DocumentID))
		cContent := C.CString(c.Text)

		result := C.xapian_index(e.db, cChunkID, cDocID, cContent)

		C.free(unsafe.Pointer(cChunkID))
		C.free(unsafe.Pointer(cDocID))
		C.free(unsafe.Pointer(cContent))

		if result != 0 {
			errMsg := C.GoString(C.xapian_get_error())
			return errors.New("xapian: failed to index chunk: " + errMsg)
		}
		e.track(c.DocumentID, c.ChunkID)
	}

	return nil
}

func (e *Engine) track(doc domain.DocumentID, chunk domain.ChunkID) {
	if _, ok := e.chunkDoc[chunk]; !ok {
		e.count++
	}
	e.chunkDoc[chunk] = doc
	set, ok := e.byDoc[doc]
	if !ok {
		set = make(map[domain.ChunkID]struct{})
		e.byDoc[doc] = set
	}
	set[chunk] = struct{}{}
}

func (e *Engine) untrack(chunk domain.ChunkID) {
	doc, ok := e.chunkDoc[chunk]
	if !ok {
		return
	}
	delete(e.chunkDoc, chunk)
	e.count--
	if set, ok := e.byDoc[doc]; ok {
		delete(set, chunk)
		if len(set) == 0 {
			delete(e.byDoc, doc)
		}
	}
}

// Delete removes every chunk belonging to doc.
func (e *Engine) Delete(_ context.Context, doc domain.DocumentID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return errors.New("xapian: database is closed")
	}

	set, ok := e.byDoc[doc]
	if !ok {
		return nil
	}
	for chunkID := range set {
		cChunkID := C.CString(string(chunkID))
		result := C.xapian_delete(e.db, cChunkID)
		C.free(unsafe.Pointer(cChunkID))
		if result != 0 {
			errMsg := C.GoString(C.xapian_get_error())
			return errors.New("xapian: failed to delete chunk: " + errMsg)
		}
		e.untrack(chunkID)
	}

	return nil
}

// Search performs a BM25 keyword search, optionally restricted to filter.
func (e *Engine) Search(_ context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.db == nil {
		return nil, errors.New("xapian: database is closed")
	}

	cQuery := C.CString(query)
	defer C.free(unsafe.Pointer(cQuery))

	fetchK := topK
	var allow map[domain.DocumentID]struct{}
	if len(filter) > 0 {
		allow = make(map[domain.DocumentID]struct{}, len(filter))
		for _, d := range filter {
			allow[d] = struct{}{}
		}
		fetchK = topK * 8
		if fetchK > e.count {
			fetchK = e.count
		}
		if fetchK < topK {
			fetchK = topK
		}
	}
	if fetchK <= 0 {
		return nil, nil
	}

	results := C.xapian_search(e.db, cQuery, C.int(fetchK))
	defer C.xapian_free_results(results)

	if results.results == nil {
		errMsg := C.GoString(C.xapian_get_error())
		if errMsg != "" {
			return nil, errors.New("xapian: search failed: " + errMsg)
		}
		return nil, nil
	}

	cResults := unsafe.Slice(results.results, int(results.count))

	hits := make([]domain.Hit, 0, int(results.count))
	for i := 0; i < int(results.count); i++ {
		chunkID := domain.ChunkID(C.GoString(cResults[i].chunk_id))
		if allow != nil {
			doc, ok := e.chunkDoc[chunkID]
			if !ok || !containsDoc(allow, doc) {
				continue
			}
		}
		hits = append(hits, domain.Hit{
			ChunkID: chunkID,
			Score:   float64(cResults[i].score),
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
func (e *Engine) Count(_ context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.count, nil
}

// Exists reports whether id is indexed.
func (e *Engine) Exists(_ context.Context, id domain.ChunkID) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.chunkDoc[id]
	return ok, nil
}

// Params returns the configured BM25 (k1, b) constants.
func (e *Engine) Params() (k1, b float64) {
	return e.k1, e.b
}

// ListDocuments returns every DocumentID with at least one indexed chunk.
func (e *Engine) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.DocumentID, 0, len(e.byDoc))
	for doc := range e.byDoc {
		out = append(out, doc)
	}
	return out, nil
}

// Close releases resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		C.xapian_close(e.db)
		e.db = nil
	}

	return nil
}
