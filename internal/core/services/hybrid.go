package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/logger"
)

// Oversampling parameters: each adapter is asked for
// max(topK*oversampleFactor, topK+oversampleFloor) hits so fusion has
// enough non-overlapping candidates to fill topK after merging.
const (
	oversampleFactor = 3
	oversampleFloor  = 20
)

// Adaptive-mode alpha presets. Alpha weights the vector side; queries
// that look like exact part numbers lean keyword, natural-language
// queries lean vector, everything else stays balanced.
const (
	alphaKeywordLeaning = 0.3
	alphaVectorLeaning  = 0.8
	alphaBalanced       = 0.5
)

// HybridConfig controls fusion ranking, mirroring domain.HybridConfig.
type HybridConfig struct {
	Method         domain.FusionMethod
	Alpha          float64
	RRFK           int
	ConsensusBoost float64
}

// DefaultHybridConfig mirrors domain.DefaultConfig's Hybrid section.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{Method: domain.FusionRRF, Alpha: 0.5, RRFK: 60, ConsensusBoost: 1.1}
}

// HybridConfigFromDomain converts the TOML-facing domain.HybridConfig
// into the services.HybridConfig a HybridSearch is built from.
func HybridConfigFromDomain(c domain.HybridConfig) HybridConfig {
	return HybridConfig{
		Method:         domain.ParseFusionMethod(c.DefaultMethod),
		Alpha:          c.Alpha,
		RRFK:           c.RRFK,
		ConsensusBoost: c.ConsensusBoost,
	}
}

// HybridSearch fans a query out to the Vector and Keyword adapters
// concurrently and fuses their result sets into one ranked list.
type HybridSearch struct {
	vector     driven.VectorAdapter
	keyword    driven.KeywordAdapter
	vectorizer driven.Vectorizer
	cfg        HybridConfig
}

// NewHybridSearch builds a HybridSearch. vectorizer may be nil if
// vector is nil too — Query then runs keyword-only.
func NewHybridSearch(vector driven.VectorAdapter, keyword driven.KeywordAdapter, vectorizer driven.Vectorizer, cfg HybridConfig) *HybridSearch {
	if cfg.RRFK <= 0 {
		cfg = DefaultHybridConfig()
	}
	return &HybridSearch{vector: vector, keyword: keyword, vectorizer: vectorizer, cfg: cfg}
}

// QueryOptions override per-query what HybridConfig sets globally.
type QueryOptions struct {
	// Method overrides the configured fusion method when non-nil.
	Method *domain.FusionMethod
	// Filter restricts hits to chunks owned by these documents.
	Filter []domain.DocumentID
}

// Query runs query against whichever adapters are configured and
// returns the fused, descending-score top-topK hits. If only one
// adapter is available, Query degrades to single-adapter search
// without error.
func (h *HybridSearch) Query(ctx context.Context, query string, topK int, opts QueryOptions) ([]domain.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	fetchK := topK * oversampleFactor
	if fetchK < topK+oversampleFloor {
		fetchK = topK + oversampleFloor
	}

	canVector := h.vector != nil && h.vectorizer != nil
	canKeyword := h.keyword != nil

	switch {
	case canVector && canKeyword:
		return h.hybrid(ctx, query, topK, fetchK, opts)
	case canVector:
		return h.vectorSearch(ctx, query, topK, opts.Filter)
	case canKeyword:
		return h.keyword.Search(ctx, query, topK, opts.Filter)
	default:
		return nil, domain.ErrUpstreamUnavailable
	}
}

// VectorOnly runs query against the vector adapter alone.
func (h *HybridSearch) VectorOnly(ctx context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	if h.vector == nil || h.vectorizer == nil {
		return nil, domain.ErrUpstreamUnavailable
	}
	return h.vectorSearch(ctx, query, topK, filter)
}

// KeywordOnly runs query against the keyword adapter alone.
func (h *HybridSearch) KeywordOnly(ctx context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	if h.keyword == nil {
		return nil, domain.ErrUpstreamUnavailable
	}
	return h.keyword.Search(ctx, query, topK, filter)
}

func (h *HybridSearch) hybrid(ctx context.Context, query string, topK, fetchK int, opts QueryOptions) ([]domain.Hit, error) {
	var vectorHits, keywordHits []domain.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := h.vectorSearch(gctx, query, fetchK, opts.Filter)
		if err != nil {
			logger.Warn("hybrid search: vector leg failed: %v", err)
			return nil
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := h.keyword.Search(gctx, query, fetchK, opts.Filter)
		if err != nil {
			logger.Warn("hybrid search: keyword leg failed: %v", err)
			return nil
		}
		keywordHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(vectorHits) == 0 && len(keywordHits) == 0 {
		return nil, nil
	}

	method := h.cfg.Method
	if opts.Method != nil {
		method = *opts.Method
	}

	var fused []domain.Hit
	switch method {
	case domain.FusionWeighted:
		fused = weightedFusion(vectorHits, keywordHits, h.cfg.Alpha, h.cfg.ConsensusBoost)
	case domain.FusionAdaptive:
		fused = weightedFusion(vectorHits, keywordHits, classifyAlpha(query), h.cfg.ConsensusBoost)
	default:
		fused = reciprocalRankFusion(vectorHits, keywordHits, h.cfg.RRFK)
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

func (h *HybridSearch) vectorSearch(ctx context.Context, query string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	vectors, err := h.vectorizer.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return h.vector.Search(ctx, vectors[0], topK, filter)
}

// reciprocalRankFusion merges two rank-ordered Hit lists by RRF score:
// 1/(k+rank) per list with 1-based ranks, summed per ChunkID. Scores
// are never normalized — RRF's whole point is robustness to the two
// adapters' incomparable score scales.
func reciprocalRankFusion(vectorHits, keywordHits []domain.Hit, k int) []domain.Hit {
	scores := make(map[domain.ChunkID]float64)
	payloads := make(map[domain.ChunkID]map[string]string)
	vectorRank := make(map[domain.ChunkID]int, len(vectorHits))

	for rank, hit := range vectorHits {
		scores[hit.ChunkID] += 1.0 / float64(k+rank+1)
		vectorRank[hit.ChunkID] = rank
		if hit.Payload != nil {
			payloads[hit.ChunkID] = hit.Payload
		}
	}
	for rank, hit := range keywordHits {
		scores[hit.ChunkID] += 1.0 / float64(k+rank+1)
		if hit.Payload != nil {
			payloads[hit.ChunkID] = hit.Payload
		}
	}

	return sortedHits(scores, payloads, vectorRank)
}

// weightedFusion min-max normalizes both lists into [0,1] and blends
// them by alpha (alpha=1 is vector-only, alpha=0 is keyword-only). A
// chunk present in both lists gets the multiplicative consensus boost
// on its blended score.
func weightedFusion(vectorHits, keywordHits []domain.Hit, alpha, consensusBoost float64) []domain.Hit {
	vNorm := normalizeScores(vectorHits)
	kNorm := normalizeScores(keywordHits)

	scores := make(map[domain.ChunkID]float64)
	payloads := make(map[domain.ChunkID]map[string]string)
	vectorRank := make(map[domain.ChunkID]int, len(vectorHits))

	for rank, hit := range vectorHits {
		scores[hit.ChunkID] += alpha * vNorm[hit.ChunkID]
		vectorRank[hit.ChunkID] = rank
		if hit.Payload != nil {
			payloads[hit.ChunkID] = hit.Payload
		}
	}
	seenBoth := make(map[domain.ChunkID]bool)
	for _, hit := range keywordHits {
		scores[hit.ChunkID] += (1 - alpha) * kNorm[hit.ChunkID]
		if _, ok := vectorRank[hit.ChunkID]; ok {
			seenBoth[hit.ChunkID] = true
		}
		if hit.Payload != nil {
			payloads[hit.ChunkID] = hit.Payload
		}
	}
	for id := range seenBoth {
		scores[id] *= consensusBoost
	}

	return sortedHits(scores, payloads, vectorRank)
}

func normalizeScores(hits []domain.Hit) map[domain.ChunkID]float64 {
	out := make(map[domain.ChunkID]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	spread := max - min
	for _, h := range hits {
		if spread == 0 {
			out[h.ChunkID] = 1
			continue
		}
		out[h.ChunkID] = (h.Score - min) / spread
	}
	return out
}

// sortedHits orders fused scores descending, breaking score ties by
// better vector rank first, then lexicographically smaller ChunkID, so
// fusion output is fully deterministic.
func sortedHits(scores map[domain.ChunkID]float64, payloads map[domain.ChunkID]map[string]string, vectorRank map[domain.ChunkID]int) []domain.Hit {
	out := make([]domain.Hit, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.Hit{ChunkID: id, Score: score, Payload: payloads[id]})
	}
	const unranked = int(^uint(0) >> 1)
	rankOf := func(id domain.ChunkID) int {
		if r, ok := vectorRank[id]; ok {
			return r
		}
		return unranked
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := rankOf(out[i].ChunkID), rankOf(out[j].ChunkID)
		if ri != rj {
			return ri < rj
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// modelNumberPattern matches tokens shaped like part or model numbers:
// uppercase letters, digits, and dashes only.
var modelNumberPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

// classifyAlpha picks the adaptive-mode alpha from the query's shape.
// A token that looks like a model number (mixed caps and digits, or an
// all-digit part number) pulls fusion toward exact keyword matching; a
// query of plain dictionary-shaped words pulls toward semantic vector
// matching; everything else stays balanced.
func classifyAlpha(query string) float64 {
	words := strings.Fields(query)
	if len(words) == 0 {
		return alphaBalanced
	}

	wordLike := 0
	for _, w := range words {
		if looksLikeModelNumber(w) {
			return alphaKeywordLeaning
		}
		if isAlphabetic(w) {
			wordLike++
		}
	}
	if wordLike == len(words) {
		return alphaVectorLeaning
	}
	return alphaBalanced
}

func looksLikeModelNumber(token string) bool {
	if !modelNumberPattern.MatchString(token) {
		return false
	}
	hasDigit := strings.ContainsAny(token, "0123456789")
	hasLetter := false
	for _, r := range token {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	// All-digit tokens of part-number length count too (e.g. "2293937").
	return (hasDigit && hasLetter) || (hasDigit && !hasLetter && len(token) >= 4)
}

func isAlphabetic(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(token) > 0
}
