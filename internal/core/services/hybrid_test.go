package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// fixedVector serves a canned, pre-ranked hit list.
type fixedVector struct {
	hits []domain.Hit
	err  error
}

func (f *fixedVector) Add(context.Context, []driven.ChunkWrite) error       { return nil }
func (f *fixedVector) Delete(context.Context, domain.DocumentID) error      { return nil }
func (f *fixedVector) Count(context.Context) (int, error)                   { return len(f.hits), nil }
func (f *fixedVector) Exists(context.Context, domain.ChunkID) (bool, error) { return false, nil }
func (f *fixedVector) ListDocuments(context.Context) ([]domain.DocumentID, error) {
	return nil, nil
}
func (f *fixedVector) Dimensions() int { return testDimensions }
func (f *fixedVector) Close() error    { return nil }
func (f *fixedVector) Search(_ context.Context, _ []float32, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return capHits(filterHits(f.hits, filter), topK), nil
}

// fixedKeyword serves a canned, pre-ranked hit list.
type fixedKeyword struct {
	hits []domain.Hit
	err  error
}

func (f *fixedKeyword) Add(context.Context, []driven.ChunkWrite) error       { return nil }
func (f *fixedKeyword) Delete(context.Context, domain.DocumentID) error      { return nil }
func (f *fixedKeyword) Count(context.Context) (int, error)                   { return len(f.hits), nil }
func (f *fixedKeyword) Exists(context.Context, domain.ChunkID) (bool, error) { return false, nil }
func (f *fixedKeyword) Params() (float64, float64)                           { return 1.2, 0.75 }
func (f *fixedKeyword) ListDocuments(context.Context) ([]domain.DocumentID, error) {
	return nil, nil
}
func (f *fixedKeyword) Close() error { return nil }
func (f *fixedKeyword) Search(_ context.Context, _ string, topK int, filter []domain.DocumentID) ([]domain.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return capHits(filterHits(f.hits, filter), topK), nil
}

func filterHits(hits []domain.Hit, filter []domain.DocumentID) []domain.Hit {
	if len(filter) == 0 {
		return hits
	}
	allow := make(map[string]bool, len(filter))
	for _, d := range filter {
		allow[string(d)] = true
	}
	var out []domain.Hit
	for _, h := range hits {
		// fixture chunk ids are "<doc>_c<ordinal>"
		for d := range allow {
			if len(h.ChunkID) > len(d) && string(h.ChunkID[:len(d)]) == d {
				out = append(out, h)
			}
		}
	}
	return out
}

func capHits(hits []domain.Hit, topK int) []domain.Hit {
	if len(hits) > topK {
		return hits[:topK]
	}
	return hits
}

func hit(id string, score float64) domain.Hit {
	return domain.Hit{ChunkID: domain.ChunkID(id), Score: score}
}

func newTestHybrid(vHits, kHits []domain.Hit, cfg HybridConfig) *HybridSearch {
	return NewHybridSearch(&fixedVector{hits: vHits}, &fixedKeyword{hits: kHits}, &stubVectorizer{}, cfg)
}

func TestHybridSearch_RRFPrefersConsensus(t *testing.T) {
	vHits := []domain.Hit{hit("docA_c00000", 0.9), hit("docB_c00000", 0.8)}
	kHits := []domain.Hit{hit("docB_c00000", 12.0), hit("docC_c00000", 7.0)}

	h := newTestHybrid(vHits, kHits, DefaultHybridConfig())
	hits, err := h.Query(context.Background(), "power module", 10, QueryOptions{})
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, domain.ChunkID("docB_c00000"), hits[0].ChunkID,
		"a chunk ranked in both lists outscores single-list chunks")
}

func TestHybridSearch_RRFMonotonicity(t *testing.T) {
	// improving a chunk's keyword rank while vector rank holds cannot
	// worsen its fused position
	base := newTestHybrid(
		[]domain.Hit{hit("docA_c00000", 0.9), hit("docB_c00000", 0.8)},
		[]domain.Hit{hit("docC_c00000", 9.0), hit("docB_c00000", 8.0)},
		DefaultHybridConfig(),
	)
	improved := newTestHybrid(
		[]domain.Hit{hit("docA_c00000", 0.9), hit("docB_c00000", 0.8)},
		[]domain.Hit{hit("docB_c00000", 9.0), hit("docC_c00000", 8.0)},
		DefaultHybridConfig(),
	)

	ctx := context.Background()
	baseHits, err := base.Query(ctx, "q", 10, QueryOptions{})
	require.NoError(t, err)
	improvedHits, err := improved.Query(ctx, "q", 10, QueryOptions{})
	require.NoError(t, err)

	assert.LessOrEqual(t, rankOfChunk(improvedHits, "docB_c00000"), rankOfChunk(baseHits, "docB_c00000"))
}

func rankOfChunk(hits []domain.Hit, id domain.ChunkID) int {
	for i, h := range hits {
		if h.ChunkID == id {
			return i
		}
	}
	return len(hits)
}

func TestHybridSearch_WeightedConsensusBoost(t *testing.T) {
	cfg := DefaultHybridConfig()
	cfg.Method = domain.FusionWeighted
	cfg.Alpha = 0.5

	// docB is near the top of both lists; the blend plus the
	// multiplicative boost lifts it over docA and docC, which only one
	// side likes
	vHits := []domain.Hit{hit("docA_c00000", 1.0), hit("docB_c00000", 0.9), hit("docX_c00000", 0.0)}
	kHits := []domain.Hit{hit("docC_c00000", 10.0), hit("docB_c00000", 9.0), hit("docY_c00000", 0.0)}

	h := newTestHybrid(vHits, kHits, cfg)
	hits, err := h.Query(context.Background(), "q", 10, QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ChunkID("docB_c00000"), hits[0].ChunkID)
}

func TestHybridSearch_FilterHonoured(t *testing.T) {
	vHits := []domain.Hit{hit("docA_c00000", 0.9), hit("docB_c00000", 0.8)}
	kHits := []domain.Hit{hit("docA_c00001", 5.0), hit("docC_c00000", 4.0)}

	h := newTestHybrid(vHits, kHits, DefaultHybridConfig())
	hits, err := h.Query(context.Background(), "q", 10, QueryOptions{
		Filter: []domain.DocumentID{"docA"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	for _, got := range hits {
		assert.Contains(t, string(got.ChunkID), "docA")
	}
}

func TestHybridSearch_DegradesWhenOneLegFails(t *testing.T) {
	vector := &fixedVector{err: domain.ErrUpstreamUnavailable}
	keyword := &fixedKeyword{hits: []domain.Hit{hit("docA_c00000", 3.0)}}
	h := NewHybridSearch(vector, keyword, &stubVectorizer{}, DefaultHybridConfig())

	hits, err := h.Query(context.Background(), "q", 10, QueryOptions{})
	require.NoError(t, err, "one failed leg degrades, never fails the query")
	require.Len(t, hits, 1)
	assert.Equal(t, domain.ChunkID("docA_c00000"), hits[0].ChunkID)
}

func TestHybridSearch_EmptyQuery(t *testing.T) {
	h := newTestHybrid(nil, nil, DefaultHybridConfig())
	hits, err := h.Query(context.Background(), "   ", 10, QueryOptions{})
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestHybridSearch_MethodOverride(t *testing.T) {
	vHits := []domain.Hit{hit("docA_c00000", 0.9)}
	kHits := []domain.Hit{hit("docB_c00000", 5.0)}

	cfg := DefaultHybridConfig() // RRF default
	h := newTestHybrid(vHits, kHits, cfg)

	weighted := domain.FusionWeighted
	hits, err := h.Query(context.Background(), "q", 10, QueryOptions{Method: &weighted})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestClassifyAlpha(t *testing.T) {
	tests := []struct {
		query string
		want  float64
	}{
		{"PM10K 2293937", alphaKeywordLeaning},
		{"RX-77B datasheet", alphaKeywordLeaning},
		{"maximum operating temperature of the power supply", alphaVectorLeaning},
		{"spec v2 rev3.1", alphaBalanced},
		{"", alphaBalanced},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyAlpha(tt.query))
		})
	}
}

func TestHybridSearch_AdaptiveRanksExactMatchHigher(t *testing.T) {
	// part-number query: the keyword side has the exact match at rank 1,
	// the vector side preferred something else
	vHits := []domain.Hit{hit("docOther_c00000", 0.99), hit("docExact_c00000", 0.5)}
	kHits := []domain.Hit{hit("docExact_c00000", 42.0), hit("docOther_c00000", 3.0)}

	cfg := DefaultHybridConfig()
	cfg.Method = domain.FusionAdaptive
	adaptive := newTestHybrid(vHits, kHits, cfg)

	hits, err := adaptive.Query(context.Background(), "PM10K 2293937", 10, QueryOptions{})
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, domain.ChunkID("docExact_c00000"), hits[0].ChunkID,
		"keyword-leaning alpha must surface the exact part-number hit first")
}

func TestReciprocalRankFusion_Deterministic(t *testing.T) {
	vHits := []domain.Hit{hit("a", 0.5), hit("b", 0.4)}
	kHits := []domain.Hit{hit("c", 5.0), hit("d", 4.0)}

	first := reciprocalRankFusion(vHits, kHits, 60)
	for i := 0; i < 10; i++ {
		again := reciprocalRankFusion(vHits, kHits, 60)
		require.Equal(t, first, again, "tie-break must be deterministic across runs")
	}
	// equal RRF mass: vector-ranked chunks sort ahead, then lexicographic
	assert.Equal(t, domain.ChunkID("a"), first[0].ChunkID)
	assert.Equal(t, domain.ChunkID("c"), first[1].ChunkID)
	assert.Equal(t, domain.ChunkID("b"), first[2].ChunkID)
	assert.Equal(t, domain.ChunkID("d"), first[3].ChunkID)
}
