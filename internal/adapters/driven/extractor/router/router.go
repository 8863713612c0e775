// Package router dispatches extraction calls between a vision-capable
// LLM extractor (Datasheet mode) and the local parser (everything
// else). It is what gets wired as THE driven.ContentExtractor, whether
// or not a vision extractor is configured.
package router

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.ContentExtractor = (*Extractor)(nil)

// Extractor routes by ExtractMode: Datasheet to the vision extractor,
// Generic/Markdown/Auto to the local one.
type Extractor struct {
	vision driven.ContentExtractor
	local  driven.ContentExtractor
}

// New builds a routing Extractor. vision may be nil; Datasheet mode
// then reports domain.ErrUnsupportedType.
func New(vision, local driven.ContentExtractor) *Extractor {
	return &Extractor{vision: vision, local: local}
}

// Extract dispatches to the extractor that can handle mode.
func (e *Extractor) Extract(ctx context.Context, content []byte, mimeHint string, mode driven.ExtractMode, prompt string) (driven.ExtractResult, error) {
	if mode == driven.ModeDatasheet {
		if e.vision == nil {
			return driven.ExtractResult{}, domain.ErrUnsupportedType
		}
		return e.vision.Extract(ctx, content, mimeHint, mode, prompt)
	}
	return e.local.Extract(ctx, content, mimeHint, mode, prompt)
}
