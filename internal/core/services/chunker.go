package services

import (
	"github.com/lumenforge/docindex/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits extracted document text into fixed-size, overlapping
// chunks. Pairs extracted alongside the text are attached to every
// chunk's metadata undivided: a datasheet's pairs typically recur
// throughout the document, so per-region attribution buys nothing.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker builds a Chunker from chunking config, clamping overlap so
// it can never stall the scan (overlap >= size would never advance).
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into ordered, immutable Chunks owned by doc.
func (c *Chunker) Chunk(doc domain.DocumentID, text string, meta domain.ChunkMetadata, pairs []domain.Pair) []domain.Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	stride := c.size - c.overlap

	estimated := total/stride + 1
	chunks := make([]domain.Chunk, 0, estimated)

	ordinal := 0
	for start := 0; start < total; start += stride {
		end := start + c.size
		if end > total {
			end = total
		}

		chunkMeta := meta
		chunkMeta.Pairs = pairs

		chunks = append(chunks, domain.Chunk{
			ID:         domain.NewChunkID(doc, ordinal),
			DocumentID: doc,
			Ordinal:    ordinal,
			Text:       string(runes[start:end]),
			Metadata:   chunkMeta,
		})
		ordinal++

		if end == total {
			break
		}
	}

	return chunks
}
