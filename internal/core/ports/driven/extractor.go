package driven

import "context"

// ExtractMode selects how a ContentExtractor reads a document's bytes.
type ExtractMode int

const (
	// ModeDatasheet extracts free text plus structured label/value pairs
	// (e.g. a part number next to its rated voltage) via a vision-
	// capable model reading the rendered page.
	ModeDatasheet ExtractMode = iota
	// ModeGeneric extracts plain text with no structure beyond paragraphs.
	ModeGeneric
	// ModeMarkdown treats the bytes as already-structured Markdown.
	ModeMarkdown
	// ModeAuto lets the extractor choose based on mimeHint.
	ModeAuto
)

func (m ExtractMode) String() string {
	switch m {
	case ModeDatasheet:
		return "datasheet"
	case ModeGeneric:
		return "generic"
	case ModeMarkdown:
		return "markdown"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ExtractedPair is one raw (label, value) pair as returned by the
// extractor, before it is attached to a domain.Chunk as a domain.Pair.
type ExtractedPair struct {
	Label string
	Value string
}

// ExtractResult is what a ContentExtractor produces from one document's
// raw bytes.
type ExtractResult struct {
	Text        string
	Pairs       []ExtractedPair
	ParseMethod string
	PageCount   int
}

// ContentExtractor turns a document's raw bytes into text plus optional
// structured pairs. Implementations may call out to a vision-
// capable LLM (Datasheet mode) or parse locally (Generic/Markdown); both
// shapes satisfy this one interface so the Index Manager never branches
// on which kind of extractor is configured.
type ContentExtractor interface {
	Extract(ctx context.Context, content []byte, mimeHint string, mode ExtractMode, prompt string) (ExtractResult, error)
}
