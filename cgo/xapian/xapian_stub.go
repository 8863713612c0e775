//go:build !cgo

package xapian

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.KeywordAdapter = (*Engine)(nil)

// DefaultK1 and DefaultB mirror the cgo build's BM25 constants so Params
// reports consistent values regardless of build tag.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Engine provides full-text search using Xapian.
// This is a stub for builds without CGO.
type Engine struct {
	path string
}

// New creates a new Xapian search engine.
func New(path string) (*Engine, error) {
	return &Engine{path: path}, nil
}

func (e *Engine) Add(_ context.Context, _ []driven.ChunkWrite) error {
	return domain.ErrNotImplemented
}

func (e *Engine) Delete(_ context.Context, _ domain.DocumentID) error {
	return domain.ErrNotImplemented
}

func (e *Engine) Search(_ context.Context, _ string, _ int, _ []domain.DocumentID) ([]domain.Hit, error) {
	return nil, domain.ErrNotImplemented
}

func (e *Engine) Count(_ context.Context) (int, error) {
	return 0, domain.ErrNotImplemented
}

func (e *Engine) Exists(_ context.Context, _ domain.ChunkID) (bool, error) {
	return false, domain.ErrNotImplemented
}

func (e *Engine) Params() (k1, b float64) {
	return DefaultK1, DefaultB
}

func (e *Engine) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	return nil, domain.ErrNotImplemented
}

// Close releases resources.
func (e *Engine) Close() error {
	return nil
}
