package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexmem "github.com/lumenforge/docindex/internal/adapters/driven/index/memory"
	storagemem "github.com/lumenforge/docindex/internal/adapters/driven/storage/memory"
	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

const testDimensions = 8

// stubExtractor returns fixed text and pairs, counting invocations so
// tests can assert the cache short-circuits repeat extractions.
type stubExtractor struct {
	calls int
	text  string
	pairs []driven.ExtractedPair
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _ string, _ driven.ExtractMode, _ string) (driven.ExtractResult, error) {
	s.calls++
	if s.err != nil {
		return driven.ExtractResult{}, s.err
	}
	return driven.ExtractResult{
		Text:        s.text,
		Pairs:       s.pairs,
		ParseMethod: "stub",
		PageCount:   1,
	}, nil
}

// stubVectorizer derives a deterministic vector from each text's bytes.
type stubVectorizer struct {
	calls   int
	badDims bool
}

func (s *stubVectorizer) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		dims := testDimensions
		if s.badDims {
			dims = testDimensions - 1
		}
		vec := make([]float32, dims)
		for j, r := range text {
			vec[j%dims] += float32(r % 13)
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubVectorizer) Dimensions() int   { return testDimensions }
func (s *stubVectorizer) ModelName() string { return "stub-embed" }

// stubKeywordGen appends fixed augmentation terms, or fails.
type stubKeywordGen struct {
	terms []string
	err   error
}

func (s *stubKeywordGen) Augment(_ context.Context, _, _ string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.terms, nil
}

type managerFixture struct {
	manager      *IndexManager
	registry     *storagemem.Registry
	fingerprints *storagemem.FingerprintStore
	cache        *storagemem.ArtifactCache
	intents      *storagemem.IntentLog
	vector       *indexmem.VectorIndex
	keyword      *indexmem.KeywordIndex
	extractor    *stubExtractor
	vectorizer   *stubVectorizer
	keywordGen   *stubKeywordGen
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		registry:     storagemem.NewRegistry(),
		fingerprints: storagemem.NewFingerprintStore(),
		cache:        storagemem.NewArtifactCache(),
		intents:      storagemem.NewIntentLog(),
		vector:       indexmem.NewVectorIndex(testDimensions),
		keyword:      indexmem.NewKeywordIndex(0, 0),
		extractor:    &stubExtractor{text: "PM10K power module rated 2293937 watts of pure torque"},
		vectorizer:   &stubVectorizer{},
		keywordGen:   nil,
	}
	f.manager = NewIndexManager(Deps{
		Registry:    f.registry,
		Fingerprint: f.fingerprints,
		Cache:       f.cache,
		Intents:     f.intents,
		Vector:      f.vector,
		Keyword:     f.keyword,
		Extractor:   f.extractor,
		Vectorizer:  f.vectorizer,
		Chunker:     NewChunker(40, 10),
	})
	return f
}

func addOpts() AddOptions {
	return AddOptions{
		Mode:      driven.ModeGeneric,
		MimeHint:  "application/pdf",
		OptionsFP: "opts-v1",
	}
}

func TestIndexManager_FreshAdd(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec, err := f.manager.Add(ctx, source, []byte("raw pdf bytes"), addOpts())
	require.NoError(t, err)

	assert.Equal(t, domain.StateReady, rec.State)
	require.NotEmpty(t, rec.ChunkIDs)

	// both adapters hold exactly the record's chunks
	vCount, err := f.vector.Count(ctx)
	require.NoError(t, err)
	kCount, err := f.keyword.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(rec.ChunkIDs), vCount)
	assert.Equal(t, len(rec.ChunkIDs), kCount)

	// a query for an in-document token finds it
	hits, err := f.keyword.Search(ctx, "torque", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	report, err := f.manager.VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIndexManager_IdempotentAdd(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")
	content := []byte("raw pdf bytes")

	rec1, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)
	require.Equal(t, 1, f.extractor.calls)

	rec2, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)

	assert.Equal(t, rec1.ID, rec2.ID)
	assert.Equal(t, 1, f.extractor.calls, "unchanged re-add must not re-extract")

	vCount, _ := f.vector.Count(ctx)
	assert.Equal(t, len(rec1.ChunkIDs), vCount, "no duplicate chunks")
}

func TestIndexManager_ContentChangeReplaces(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec1, err := f.manager.Add(ctx, source, []byte("first revision"), addOpts())
	require.NoError(t, err)

	f.extractor.text = "RX77B controller for 8812345 applications"
	rec2, err := f.manager.Add(ctx, source, []byte("second revision"), addOpts())
	require.NoError(t, err)

	assert.NotEqual(t, rec1.ID, rec2.ID, "content change derives a new document id")
	assert.Equal(t, domain.StateReady, rec2.State)

	// exactly one record for the source, the new one
	current, err := f.registry.GetDocumentBySource(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, rec2.ID, current.ID)

	// old chunks gone from both adapters
	for _, chunkID := range rec1.ChunkIDs {
		has, _ := f.vector.Exists(ctx, chunkID)
		assert.False(t, has, "old chunk %s still in vector index", chunkID)
		has, _ = f.keyword.Exists(ctx, chunkID)
		assert.False(t, has, "old chunk %s still in keyword index", chunkID)
	}

	// a query for an old-revision token finds nothing
	hits, err := f.keyword.Search(ctx, "torque", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexManager_OptionsChangeRegeneratesFromCache(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")
	content := []byte("raw pdf bytes")

	rec1, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)
	require.Equal(t, 1, f.extractor.calls)

	opts := addOpts()
	opts.OptionsFP = "opts-v2"
	rec2, err := f.manager.Add(ctx, source, content, opts)
	require.NoError(t, err)

	assert.NotEqual(t, rec1.ID, rec2.ID, "options are part of the id")
	assert.Equal(t, domain.StateReady, rec2.State)
	assert.Equal(t, 2, f.extractor.calls, "new options fingerprint misses the cache")

	current, err := f.registry.GetDocumentBySource(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, rec2.ID, current.ID)
}

func TestIndexManager_CacheHitAfterRemove(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")
	content := []byte("raw pdf bytes")

	rec, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)
	require.Equal(t, 1, f.extractor.calls)

	require.NoError(t, f.manager.Remove(ctx, rec.ID))

	// removal never evicts the artifact cache; re-adding identical
	// bytes re-indexes without re-extracting
	rec2, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rec2.State)
	assert.Equal(t, 1, f.extractor.calls, "re-add of cached bytes must hit the cache")
}

func TestIndexManager_RemoveIsTotal(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
	require.NoError(t, err)

	require.NoError(t, f.manager.Remove(ctx, rec.ID))

	vCount, _ := f.vector.Count(ctx)
	kCount, _ := f.keyword.Count(ctx)
	assert.Zero(t, vCount)
	assert.Zero(t, kCount)

	_, err = f.registry.GetDocumentBySource(ctx, source)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.fingerprints.Get(ctx, source)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexManager_ExtractionFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.extractor.err = fmt.Errorf("%w: scanner on fire", domain.ErrExtractionFailed)
	ctx := context.Background()

	_, err := f.manager.Add(ctx, domain.NewPathSource("bad.pdf"), []byte("bytes"), addOpts())
	require.Error(t, err)

	var taxErr *domain.TaxonomyError
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, domain.KindExtraction, taxErr.Kind)

	// nothing was written anywhere
	vCount, _ := f.vector.Count(ctx)
	assert.Zero(t, vCount)
	docs, _ := f.registry.ListDocuments(ctx, driven.DocumentFilter{})
	assert.Empty(t, docs)
}

func TestIndexManager_AugmentationAppendsTokens(t *testing.T) {
	f := newManagerFixture(t)
	f.keywordGen = &stubKeywordGen{terms: []string{"zzsynonym"}}
	f.manager = NewIndexManager(Deps{
		Registry: f.registry, Fingerprint: f.fingerprints, Cache: f.cache,
		Intents: f.intents, Vector: f.vector, Keyword: f.keyword,
		Extractor: f.extractor, Vectorizer: f.vectorizer,
		KeywordGen: f.keywordGen, Chunker: NewChunker(40, 10),
	})
	ctx := context.Background()

	_, err := f.manager.Add(ctx, domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.NoError(t, err)

	hits, err := f.keyword.Search(ctx, "zzsynonym", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hits, "augmented tokens must be BM25-searchable")
}

func TestIndexManager_AugmentationFailureIsNonFatal(t *testing.T) {
	f := newManagerFixture(t)
	f.keywordGen = &stubKeywordGen{err: errors.New("llm unavailable")}
	f.manager = NewIndexManager(Deps{
		Registry: f.registry, Fingerprint: f.fingerprints, Cache: f.cache,
		Intents: f.intents, Vector: f.vector, Keyword: f.keyword,
		Extractor: f.extractor, Vectorizer: f.vectorizer,
		KeywordGen: f.keywordGen, Chunker: NewChunker(40, 10),
	})

	rec, err := f.manager.Add(context.Background(), domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rec.State)
}

func TestIndexManager_DimensionMismatch(t *testing.T) {
	f := newManagerFixture(t)
	f.vectorizer.badDims = true

	_, err := f.manager.Add(context.Background(), domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndexManager_RecoverReplaysDeleteSteps(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
	require.NoError(t, err)

	// simulate a crash mid-removal: intent announced, no steps done
	intent := domain.IntentRecord{
		OpID:       "op_crashed",
		DocumentID: rec.ID,
		Kind:       domain.JobRemove,
		Steps:      []domain.IntentStep{domain.StepVectorDelete, domain.StepKeywordDelete},
		Done:       []bool{false, false},
	}
	require.NoError(t, f.intents.Announce(ctx, intent))

	recovered, err := f.manager.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	vCount, _ := f.vector.Count(ctx)
	kCount, _ := f.keyword.Count(ctx)
	assert.Zero(t, vCount)
	assert.Zero(t, kCount)

	replayed, err := f.intents.Get(ctx, "op_crashed")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentCommitted, replayed.State)

	incomplete, err := f.intents.ListIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestIndexManager_RecoverMarksUnreplayableCorrupt(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
	require.NoError(t, err)

	// a crashed write step lost its in-memory payload; Recover can only
	// flag the document for repair
	intent := domain.IntentRecord{
		OpID:       "op_lost_payload",
		DocumentID: rec.ID,
		Kind:       domain.JobAdd,
		Steps:      []domain.IntentStep{domain.StepVectorWrite, domain.StepKeywordWrite},
		Done:       []bool{false, false},
	}
	require.NoError(t, f.intents.Announce(ctx, intent))

	_, err = f.manager.Recover(ctx)
	require.NoError(t, err)

	got, err := f.registry.GetDocument(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCorrupt, got.State)
}

func TestIndexManager_RepairResetsDocument(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	rec, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
	require.NoError(t, err)

	repaired, err := f.manager.Repair(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, repaired.State)
	assert.Empty(t, repaired.ChunkIDs)

	vCount, _ := f.vector.Count(ctx)
	assert.Zero(t, vCount, "repair tears the adapters down for a clean rebuild")

	// the next add rebuilds from scratch
	rebuilt, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rebuilt.State)
	assert.NotEmpty(t, rebuilt.ChunkIDs)
}

func TestIndexManager_VerifyConsistencyFindsOrphans(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// plant chunks in the keyword adapter under a doc id the registry
	// has never heard of
	err := f.keyword.Add(ctx, []driven.ChunkWrite{{
		ChunkID: "doc_ghost_c00000", DocumentID: "doc_ghost", Text: "phantom",
	}})
	require.NoError(t, err)

	report, err := f.manager.VerifyConsistency(ctx)
	require.NoError(t, err)

	require.False(t, report.Clean())
	found := false
	for _, entry := range report.Entries {
		if entry.DocumentID == "doc_ghost" {
			assert.Equal(t, domain.OrphanInKeyword, entry.Status)
			found = true
		}
	}
	assert.True(t, found)
}

func TestIndexManager_VerifyConsistencyFindsMissing(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	rec, err := f.manager.Add(ctx, domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.NoError(t, err)

	// delete the vector side behind the registry's back
	require.NoError(t, f.vector.Delete(ctx, rec.ID))

	report, err := f.manager.VerifyConsistency(ctx)
	require.NoError(t, err)
	require.False(t, report.Clean())

	var status domain.ConsistencyStatus
	for _, entry := range report.Entries {
		if entry.DocumentID == rec.ID {
			status = entry.Status
		}
	}
	assert.Equal(t, domain.MissingInVector, status)
}

func TestIndexManager_KeywordOnlyDegradation(t *testing.T) {
	f := newManagerFixture(t)
	f.manager = NewIndexManager(Deps{
		Registry: f.registry, Fingerprint: f.fingerprints, Cache: f.cache,
		Intents: f.intents, Keyword: f.keyword,
		Extractor: f.extractor, Chunker: NewChunker(40, 10),
	})
	ctx := context.Background()

	rec, err := f.manager.Add(ctx, domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rec.State)

	hits, err := f.keyword.Search(ctx, "torque", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	report, err := f.manager.VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "no vector leg configured means no vector expectations")
}

func TestIndexManager_CancellationLeavesIntentResumable(t *testing.T) {
	f := newManagerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Add(ctx, domain.NewPathSource("device.pdf"), []byte("bytes"), addOpts())
	require.Error(t, err)

	var taxErr *domain.TaxonomyError
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, domain.KindCancellation, taxErr.Kind)

	// the announced intent survives for Recover; no record latched Failed
	incomplete, err := f.intents.ListIncomplete(context.Background())
	require.NoError(t, err)
	assert.Len(t, incomplete, 1)

	docs, err := f.registry.ListDocuments(context.Background(), driven.DocumentFilter{})
	require.NoError(t, err)
	for _, rec := range docs {
		assert.NotEqual(t, domain.StateFailed, rec.State)
	}
}

func TestIndexManager_ForceReprocessesUnchanged(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")
	content := []byte("bytes")

	rec1, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)

	opts := addOpts()
	opts.Force = true
	rec2, err := f.manager.Add(ctx, source, content, opts)
	require.NoError(t, err)

	assert.Equal(t, rec1.ID, rec2.ID, "same content and options keep the derived id")
	assert.Equal(t, domain.StateReady, rec2.State)
	assert.Equal(t, 1, f.extractor.calls, "forced reprocess still reads the cache")

	vCount, _ := f.vector.Count(ctx)
	assert.Equal(t, len(rec2.ChunkIDs), vCount, "no duplicate chunks after a forced run")
}

func TestIndexManager_AddHealsCorruptRecord(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")
	content := []byte("bytes")

	// plant a Ready record with no chunks: a crash artifact the change
	// detector classifies as Corrupt
	fp := domain.ComputeFingerprint(content, int64(len(content)), time.Now())
	docID := domain.NewDocumentID(source, fp, addOpts().OptionsFP)
	require.NoError(t, f.registry.PutDocument(ctx, domain.DocumentRecord{
		ID: docID, Source: source, Fingerprint: fp,
		OptionsFP: addOpts().OptionsFP, State: domain.StateReady,
	}))
	require.NoError(t, f.fingerprints.Put(ctx, source, fp))

	rec, err := f.manager.Add(ctx, source, content, addOpts())
	require.NoError(t, err)

	assert.Equal(t, domain.StateReady, rec.State)
	assert.NotEmpty(t, rec.ChunkIDs)

	report, err := f.manager.VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestIndexManager_PerDocSerialization(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	source := domain.NewPathSource("device.pdf")

	// concurrent adds of the same source must converge to one Ready
	// record with consistent adapters, as if run sequentially
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.manager.Add(ctx, source, []byte("bytes"), addOpts())
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	rec, err := f.registry.GetDocumentBySource(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rec.State)

	vCount, _ := f.vector.Count(ctx)
	assert.Equal(t, len(rec.ChunkIDs), vCount)
}
