// Package local implements driven.ContentExtractor without calling out
// to any external LLM: Markdown, HTML, and plain text are parsed
// in-process, and PDF text is pulled page-by-page with ledongthuc/pdf.
// It has no vision capability, so ModeDatasheet — which requires a
// model that can read a rendered page and return structured pairs — is
// not supported here; the router sends every Generic/Markdown/Auto
// extraction here, whether or not a vision-capable extractor is configured.
package local

import (
	"context"
	"strings"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.ContentExtractor = (*Extractor)(nil)

// Extractor is the local, non-LLM ContentExtractor.
type Extractor struct{}

// New creates a local Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on mimeHint (or content sniffing for ModeAuto) to
// the matching parser. Pairs are always empty: structured pair
// extraction is a Datasheet-mode, vision-LLM capability this extractor
// doesn't have.
func (e *Extractor) Extract(_ context.Context, content []byte, mimeHint string, mode driven.ExtractMode, _ string) (driven.ExtractResult, error) {
	if mode == driven.ModeDatasheet {
		return driven.ExtractResult{}, domain.ErrUnsupportedType
	}

	switch {
	case mode == driven.ModeMarkdown || mimeHint == "text/markdown" || mimeHint == "text/x-markdown":
		return driven.ExtractResult{
			Text:        stripMarkdown(string(content)),
			ParseMethod: "local_markdown",
			PageCount:   1,
		}, nil

	case mimeHint == "text/html" || mimeHint == "application/xhtml+xml":
		return driven.ExtractResult{
			Text:        stripHTML(string(content)),
			ParseMethod: "local_html",
			PageCount:   1,
		}, nil

	case mimeHint == "application/pdf":
		text, pages, err := extractPDFText(content)
		if err != nil {
			return driven.ExtractResult{}, domain.NewTaxonomyError(domain.KindExtraction, err)
		}
		return driven.ExtractResult{
			Text:        text,
			ParseMethod: "local_pdf",
			PageCount:   pages,
		}, nil

	case mode == driven.ModeAuto && looksLikeMarkdown(content):
		return driven.ExtractResult{
			Text:        stripMarkdown(string(content)),
			ParseMethod: "local_markdown",
			PageCount:   1,
		}, nil

	default:
		return driven.ExtractResult{
			Text:        string(content),
			ParseMethod: "local_plaintext",
			PageCount:   1,
		}, nil
	}
}

// looksLikeMarkdown is a cheap heuristic for ModeAuto when mimeHint is
// absent or generic: the presence of heading or fenced-code markers is
// enough to prefer the markdown stripper over verbatim plain text.
func looksLikeMarkdown(content []byte) bool {
	s := string(content)
	return strings.Contains(s, "\n# ") || strings.HasPrefix(s, "# ") || strings.Contains(s, "```")
}
