package driven

import "context"

// KeywordGenerator proposes extra search terms for a chunk — synonyms,
// expansions, normalised part numbers — that get appended to the
// chunk's text before it reaches the Keyword Adapter, improving BM25
// recall for queries that don't share the chunk's exact vocabulary.
// It is optional: a nil KeywordGenerator, or one that errors, never
// fails ingestion — the chunk is simply indexed without augmentation.
type KeywordGenerator interface {
	Augment(ctx context.Context, chunkText, docContext string) ([]string, error)
}
