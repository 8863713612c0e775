package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.KeywordAdapter = (*KeywordIndex)(nil)

// Default BM25 constants, matching the Xapian binding's defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// KeywordIndex is an in-memory driven.KeywordAdapter: it tokenizes on
// write into an inverted index and scores queries with BM25, returning
// raw (unnormalized) scores like the Xapian backend does.
type KeywordIndex struct {
	mu sync.RWMutex

	k1, b float64

	postings  map[string]map[domain.ChunkID]int
	docLength map[domain.ChunkID]int
	texts     map[domain.ChunkID]string
	chunkDoc  map[domain.ChunkID]domain.DocumentID
	byDoc     map[domain.DocumentID]map[domain.ChunkID]struct{}
	totalLen  int
}

// NewKeywordIndex creates an empty index with the given BM25 constants;
// zero values select the defaults.
func NewKeywordIndex(k1, b float64) *KeywordIndex {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	return &KeywordIndex{
		k1:        k1,
		b:         b,
		postings:  make(map[string]map[domain.ChunkID]int),
		docLength: make(map[domain.ChunkID]int),
		texts:     make(map[domain.ChunkID]string),
		chunkDoc:  make(map[domain.ChunkID]domain.DocumentID),
		byDoc:     make(map[domain.DocumentID]map[domain.ChunkID]struct{}),
	}
}

// Add writes or overwrites the given chunks' text, tokenizing into the
// inverted index on the spot. Overwriting the same ChunkID first
// removes its old postings, so repeated adds are idempotent.
func (idx *KeywordIndex) Add(_ context.Context, chunks []driven.ChunkWrite) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, c := range chunks {
		if _, exists := idx.texts[c.ChunkID]; exists {
			idx.removeLocked(c.ChunkID)
		}

		terms := tokenize(c.Text)
		for _, term := range terms {
			posting, ok := idx.postings[term]
			if !ok {
				posting = make(map[domain.ChunkID]int)
				idx.postings[term] = posting
			}
			posting[c.ChunkID]++
		}

		idx.docLength[c.ChunkID] = len(terms)
		idx.totalLen += len(terms)
		idx.texts[c.ChunkID] = c.Text
		idx.chunkDoc[c.ChunkID] = c.DocumentID
		set, ok := idx.byDoc[c.DocumentID]
		if !ok {
			set = make(map[domain.ChunkID]struct{})
			idx.byDoc[c.DocumentID] = set
		}
		set[c.ChunkID] = struct{}{}
	}
	return nil
}

// Delete removes every chunk belonging to doc. Succeeds if none exist.
func (idx *KeywordIndex) Delete(_ context.Context, doc domain.DocumentID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for chunkID := range idx.byDoc[doc] {
		idx.removeLocked(chunkID)
	}
	delete(idx.byDoc, doc)
	return nil
}

func (idx *KeywordIndex) removeLocked(chunkID domain.ChunkID) {
	for term, posting := range idx.postings {
		if _, ok := posting[chunkID]; ok {
			delete(posting, chunkID)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	idx.totalLen -= idx.docLength[chunkID]
	delete(idx.docLength, chunkID)
	delete(idx.texts, chunkID)
	doc := idx.chunkDoc[chunkID]
	delete(idx.chunkDoc, chunkID)
	if set, ok := idx.byDoc[doc]; ok {
		delete(set, chunkID)
		if len(set) == 0 {
			delete(idx.byDoc, doc)
		}
	}
}

// Search scores every chunk containing at least one query term with
// BM25 and returns the topK, optionally restricted to filter.
func (idx *KeywordIndex) Search(_ context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if topK <= 0 || len(idx.docLength) == 0 {
		return nil, nil
	}

	var allow map[domain.DocumentID]struct{}
	if len(filter) > 0 {
		allow = make(map[domain.DocumentID]struct{}, len(filter))
		for _, d := range filter {
			allow[d] = struct{}{}
		}
	}

	n := float64(len(idx.docLength))
	avgLen := float64(idx.totalLen) / n

	scores := make(map[domain.ChunkID]float64)
	for _, term := range tokenize(query) {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		// Lucene-style lower-bounded IDF: never negative even when a
		// term appears in more than half the chunks.
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			if allow != nil {
				if _, ok := allow[idx.chunkDoc[chunkID]]; !ok {
					continue
				}
			}
			dl := float64(idx.docLength[chunkID])
			tfNorm := float64(tf) * (idx.k1 + 1) /
				(float64(tf) + idx.k1*(1-idx.b+idx.b*dl/avgLen))
			scores[chunkID] += idf * tfNorm
		}
	}

	hits := make([]domain.Hit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, domain.Hit{
			ChunkID: chunkID,
			Score:   score,
			Payload: map[string]string{"text": idx.texts[chunkID]},
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (idx *KeywordIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLength), nil
}

// Exists reports whether id is indexed.
func (idx *KeywordIndex) Exists(_ context.Context, id domain.ChunkID) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docLength[id]
	return ok, nil
}

// Params returns the configured BM25 (k1, b) constants.
func (idx *KeywordIndex) Params() (k1, b float64) {
	return idx.k1, idx.b
}

// ListDocuments returns every DocumentID with at least one indexed chunk.
func (idx *KeywordIndex) ListDocuments(_ context.Context) ([]domain.DocumentID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]domain.DocumentID, 0, len(idx.byDoc))
	for doc := range idx.byDoc {
		out = append(out, doc)
	}
	return out, nil
}

// Close releases nothing; it exists to satisfy the port.
func (idx *KeywordIndex) Close() error {
	return nil
}

// tokenize lowercases and splits on any non-letter, non-digit rune.
// Deliberately simple: the Xapian backend owns real stemming; this
// index only needs deterministic, overlap-friendly tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
