package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/docindex/internal/adapters/driven/fetch"
	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

func newExecutorFixture(t *testing.T) (*JobExecutor, *managerFixture) {
	t.Helper()
	f := newManagerFixture(t)
	executor := NewJobExecutor(f.manager, fetch.New(nil), f.registry, IngestOptions{
		Mode:         driven.ModeAuto,
		ChunkSize:    40,
		ChunkOverlap: 10,
	}, domain.TimeoutsConfig{Base: 30 * time.Second, PerPage: time.Second})
	return executor, f
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestJobExecutor_AddJob(t *testing.T) {
	executor, f := newExecutorFixture(t)
	path := writeTempDoc(t, "notes.md", "# Device\n\nPM10K details")

	err := executor.Handle(context.Background(), domain.Job{
		Kind:   domain.JobAdd,
		Source: domain.NewPathSource(path),
	})
	require.NoError(t, err)

	rec, err := f.registry.GetDocumentBySource(context.Background(), domain.NewPathSource(path))
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, rec.State)
	assert.Equal(t, "text/markdown", rec.MimeType)
}

func TestJobExecutor_ReAddOfUntouchedFileIsUnchanged(t *testing.T) {
	executor, f := newExecutorFixture(t)
	path := writeTempDoc(t, "notes.md", "# Device\n\nPM10K details")
	source := domain.NewPathSource(path)
	ctx := context.Background()

	first, err := executor.Ingest(ctx, source)
	require.NoError(t, err)
	require.Equal(t, 1, f.extractor.calls)

	// the file's mtime hasn't moved, so the second run must classify
	// as Unchanged: same record, no extraction, no adapter churn
	second, err := executor.Ingest(ctx, source)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.extractor.calls, "unchanged re-ingest must not re-extract")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))

	vCount, _ := f.vector.Count(ctx)
	assert.Equal(t, len(first.ChunkIDs), vCount, "no duplicate chunks")
}

func TestJobExecutor_MissingSourceIsValidationError(t *testing.T) {
	executor, _ := newExecutorFixture(t)

	err := executor.Handle(context.Background(), domain.Job{
		Kind:   domain.JobAdd,
		Source: domain.NewPathSource("/no/such/doc.pdf"),
	})
	require.Error(t, err)

	var taxErr *domain.TaxonomyError
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, domain.KindValidation, taxErr.Kind)
	assert.False(t, taxErr.Retryable())
}

func TestJobExecutor_RemoveJobBySource(t *testing.T) {
	executor, f := newExecutorFixture(t)
	path := writeTempDoc(t, "notes.md", "# Device\n\nPM10K details")
	source := domain.NewPathSource(path)
	ctx := context.Background()

	require.NoError(t, executor.Handle(ctx, domain.Job{Kind: domain.JobAdd, Source: source}))

	require.NoError(t, executor.Handle(ctx, domain.Job{Kind: domain.JobRemove, Source: source}))

	_, err := f.registry.GetDocumentBySource(ctx, source)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// removing again is idempotent
	require.NoError(t, executor.Handle(ctx, domain.Job{Kind: domain.JobRemove, Source: source}))
}

func TestJobExecutor_UnknownKindRejected(t *testing.T) {
	executor, _ := newExecutorFixture(t)

	err := executor.Handle(context.Background(), domain.Job{Kind: domain.JobKind(42)})
	require.Error(t, err)

	var taxErr *domain.TaxonomyError
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, domain.KindValidation, taxErr.Kind)
}

func TestIngestOptions_FingerprintChangesWithChunking(t *testing.T) {
	a := IngestOptions{Mode: driven.ModeGeneric, ChunkSize: 1000, ChunkOverlap: 200}.Fingerprint()
	b := IngestOptions{Mode: driven.ModeGeneric, ChunkSize: 500, ChunkOverlap: 200}.Fingerprint()
	c := IngestOptions{Mode: driven.ModeGeneric, ChunkSize: 1000, ChunkOverlap: 200}.Fingerprint()

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestJobExecutor_DeadlineScalesWithSize(t *testing.T) {
	executor, _ := newExecutorFixture(t)

	small := executor.deadlineFor(1)
	large := executor.deadlineFor(100 * estimatedPageSize)

	assert.Equal(t, 31*time.Second, small, "one-page floor: base + 1*per_page")
	assert.Equal(t, 130*time.Second, large)
}
