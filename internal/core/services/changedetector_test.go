package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/docindex/internal/adapters/driven/storage/memory"
	"github.com/lumenforge/docindex/internal/core/domain"
)

func seedDetector(t *testing.T, content string, optionsFP string, state domain.DocumentState) (*ChangeDetector, domain.Source, domain.Fingerprint, domain.DocumentRecord) {
	t.Helper()
	ctx := context.Background()

	registry := memory.NewRegistry()
	fingerprints := memory.NewFingerprintStore()
	detector := NewChangeDetector(registry, fingerprints)

	source := domain.NewPathSource("device.pdf")
	fp := domain.ComputeFingerprint([]byte(content), int64(len(content)), time.Unix(1000, 0))
	docID := domain.NewDocumentID(source, fp, optionsFP)

	rec := domain.DocumentRecord{
		ID:          docID,
		Source:      source,
		Fingerprint: fp,
		OptionsFP:   optionsFP,
		State:       state,
		ChunkIDs:    []domain.ChunkID{domain.NewChunkID(docID, 0)},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, registry.PutDocument(ctx, rec))
	require.NoError(t, fingerprints.Put(ctx, source, fp))

	return detector, source, fp, rec
}

func TestChangeDetector_NewDocument(t *testing.T) {
	detector := NewChangeDetector(memory.NewRegistry(), memory.NewFingerprintStore())

	fp := domain.ComputeFingerprint([]byte("fresh"), 5, time.Now())
	kind, prior, err := detector.Detect(context.Background(), domain.NewPathSource("new.pdf"), fp, "opts")

	require.NoError(t, err)
	assert.Equal(t, domain.NewDocument, kind)
	assert.Nil(t, prior)
}

func TestChangeDetector_Unchanged(t *testing.T) {
	detector, source, fp, rec := seedDetector(t, "content", "opts", domain.StateReady)

	kind, prior, err := detector.Detect(context.Background(), source, fp, "opts")

	require.NoError(t, err)
	assert.Equal(t, domain.Unchanged, kind)
	require.NotNil(t, prior)
	assert.Equal(t, rec.ID, prior.ID)
}

func TestChangeDetector_ContentChanged(t *testing.T) {
	detector, source, _, _ := seedDetector(t, "content", "opts", domain.StateReady)

	newFP := domain.ComputeFingerprint([]byte("different"), 9, time.Unix(1000, 0))
	kind, prior, err := detector.Detect(context.Background(), source, newFP, "opts")

	require.NoError(t, err)
	assert.Equal(t, domain.ContentChanged, kind)
	assert.NotNil(t, prior)
}

func TestChangeDetector_OptionsChanged(t *testing.T) {
	detector, source, fp, _ := seedDetector(t, "content", "opts", domain.StateReady)

	kind, _, err := detector.Detect(context.Background(), source, fp, "other-opts")

	require.NoError(t, err)
	assert.Equal(t, domain.OptionsChanged, kind)
}

func TestChangeDetector_ContentWinsOverOptions(t *testing.T) {
	detector, source, _, _ := seedDetector(t, "content", "opts", domain.StateReady)

	newFP := domain.ComputeFingerprint([]byte("different"), 9, time.Unix(1000, 0))
	kind, _, err := detector.Detect(context.Background(), source, newFP, "other-opts")

	require.NoError(t, err)
	assert.Equal(t, domain.ContentChanged, kind, "both changed must resolve to ContentChanged")
}

func TestChangeDetector_MetadataOnly(t *testing.T) {
	detector, source, fp, _ := seedDetector(t, "content", "opts", domain.StateReady)

	// same bytes, drifted mtime: hash equal, metadata not
	drifted := fp
	drifted.ModTime = time.Unix(2000, 0)
	kind, _, err := detector.Detect(context.Background(), source, drifted, "opts")

	require.NoError(t, err)
	assert.Equal(t, domain.MetadataOnly, kind)
}

func TestChangeDetector_CorruptWhenReadyWithoutChunks(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	fingerprints := memory.NewFingerprintStore()
	detector := NewChangeDetector(registry, fingerprints)

	source := domain.NewPathSource("bad.pdf")
	fp := domain.ComputeFingerprint([]byte("content"), 7, time.Unix(1000, 0))
	docID := domain.NewDocumentID(source, fp, "opts")
	require.NoError(t, registry.PutDocument(ctx, domain.DocumentRecord{
		ID: docID, Source: source, Fingerprint: fp, OptionsFP: "opts",
		State: domain.StateReady, // no chunk ids
	}))
	require.NoError(t, fingerprints.Put(ctx, source, fp))

	kind, prior, err := detector.Detect(ctx, source, fp, "opts")
	require.NoError(t, err)
	assert.Equal(t, domain.Corrupt, kind)
	require.NotNil(t, prior)
}

func TestChangeDetector_CorruptWhenFingerprintOrphaned(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	fingerprints := memory.NewFingerprintStore()
	detector := NewChangeDetector(registry, fingerprints)

	source := domain.NewPathSource("orphan.pdf")
	fp := domain.ComputeFingerprint([]byte("content"), 7, time.Now())
	require.NoError(t, fingerprints.Put(ctx, source, fp))

	kind, _, err := detector.Detect(ctx, source, fp, "opts")
	require.NoError(t, err)
	assert.Equal(t, domain.Corrupt, kind, "fingerprint without a registry record is a store disagreement")
}
