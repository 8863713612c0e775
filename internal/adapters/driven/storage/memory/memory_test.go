package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

func TestFingerprintStore_RoundTrip(t *testing.T) {
	s := NewFingerprintStore()
	ctx := context.Background()
	source := domain.NewPathSource("./a.pdf")
	fp := domain.ComputeFingerprint([]byte("bytes"), 5, time.Now())

	_, err := s.Get(ctx, source)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, source, fp))

	// lookup under an unnormalised spelling of the same path
	got, err := s.Get(ctx, domain.Source{Kind: domain.SourceKindPath, Value: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, got.Equal(fp))

	require.NoError(t, s.Delete(ctx, source))
	_, err = s.Get(ctx, source)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArtifactCache_TTLExpiry(t *testing.T) {
	c := NewArtifactCache()
	ctx := context.Background()
	key := driven.ArtifactKey{ContentHash: "h", OptionsFP: "o", Stage: "extract"}

	require.NoError(t, c.Put(ctx, key, []byte("value"), -time.Second))
	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound, "expired entry reads as a miss")

	require.NoError(t, c.Put(ctx, key, []byte("value"), time.Hour))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
	assert.Equal(t, int64(1), c.Hits())
}

func TestArtifactCache_Sweep(t *testing.T) {
	c := NewArtifactCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, driven.ArtifactKey{ContentHash: "a", Stage: "extract"}, []byte("x"), time.Minute))
	require.NoError(t, c.Put(ctx, driven.ArtifactKey{ContentHash: "b", Stage: "extract"}, []byte("y"), time.Minute))

	swept, err := c.Sweep(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	entries, _, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, entries)
}

func TestArtifactCache_Clear(t *testing.T) {
	c := NewArtifactCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, driven.ArtifactKey{ContentHash: "a", Stage: "extract"}, []byte("x"), time.Hour))
	require.NoError(t, c.Put(ctx, driven.ArtifactKey{ContentHash: "b", Stage: "extract"}, []byte("y"), time.Hour))

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared, "clear drops unexpired entries too")

	entries, _, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, entries)
}

func TestFingerprintStore_Sweep(t *testing.T) {
	s := NewFingerprintStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.NewPathSource("old.pdf"), domain.Fingerprint{}))
	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Put(ctx, domain.NewPathSource("new.pdf"), domain.Fingerprint{}))

	swept, err := s.Sweep(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = s.Get(ctx, domain.NewPathSource("old.pdf"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(ctx, domain.NewPathSource("new.pdf"))
	assert.NoError(t, err)
}

func TestRegistry_SetState(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.NoError(t, r.PutDocument(ctx, domain.DocumentRecord{ID: "doc_a", State: domain.StateIndexing}))

	require.NoError(t, r.SetState(ctx, "doc_a", domain.StateFailed, "extractor exploded"))
	got, err := r.GetDocument(ctx, "doc_a")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, got.State)
	assert.Equal(t, "extractor exploded", got.Error)

	assert.ErrorIs(t, r.SetState(ctx, "doc_missing", domain.StateReady, ""), domain.ErrNotFound)
}

func TestRegistry_ListFilterAndPaging(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	base := time.Now()

	for i, state := range []domain.DocumentState{
		domain.StateReady, domain.StateFailed, domain.StateReady, domain.StateReady,
	} {
		require.NoError(t, r.PutDocument(ctx, domain.DocumentRecord{
			ID:        domain.DocumentID("doc_" + string(rune('a'+i))),
			State:     state,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	ready, err := r.ListDocuments(ctx, driven.DocumentFilter{States: []domain.DocumentState{domain.StateReady}})
	require.NoError(t, err)
	assert.Len(t, ready, 3)

	page, err := r.ListDocuments(ctx, driven.DocumentFilter{
		States: []domain.DocumentState{domain.StateReady}, Limit: 2, Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.DocumentID("doc_c"), page[0].ID)
}

func TestRegistry_BySourceReturnsLatest(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	source := domain.NewPathSource("a.pdf")

	older := domain.DocumentRecord{ID: "doc_old", Source: source, UpdatedAt: time.Now().Add(-time.Hour)}
	newer := domain.DocumentRecord{ID: "doc_new", Source: source, UpdatedAt: time.Now()}
	require.NoError(t, r.PutDocument(ctx, older))
	require.NoError(t, r.PutDocument(ctx, newer))

	got, err := r.GetDocumentBySource(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentID("doc_new"), got.ID)
}

func TestRegistry_ChunkOwnership(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: domain.NewChunkID("doc_a", 1), DocumentID: "doc_a", Ordinal: 1, Text: "two"},
		{ID: domain.NewChunkID("doc_a", 0), DocumentID: "doc_a", Ordinal: 0, Text: "one"},
		{ID: domain.NewChunkID("doc_b", 0), DocumentID: "doc_b", Ordinal: 0, Text: "other"},
	}
	require.NoError(t, r.PutChunks(ctx, chunks))

	got, err := r.GetChunks(ctx, "doc_a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text, "chunks return in ordinal order")
	assert.Equal(t, "two", got[1].Text)

	require.NoError(t, r.DeleteChunks(ctx, []domain.ChunkID{got[0].ID, got[1].ID}))
	remaining, err := r.GetChunks(ctx, "doc_a")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestJobStore_ClaimOrdering(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	low, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, Priority: 1, MaxAttempts: 3})
	require.NoError(t, err)
	high, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, Priority: 9, MaxAttempts: 3})
	require.NoError(t, err)

	claimed, err := s.Claim(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, high.ID, claimed.ID, "highest priority claims first")
	assert.Equal(t, domain.JobRunning, claimed.State)
	assert.Equal(t, "w1", claimed.WorkerID)

	claimed2, err := s.Claim(ctx, "w2", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, low.ID, claimed2.ID)

	_, err = s.Claim(ctx, "w3", now, now.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestJobStore_VisibilityDelay(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	_, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, VisibleAt: now.Add(time.Hour), MaxAttempts: 3})
	require.NoError(t, err)

	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrQueueEmpty, "future VisibleAt hides the job")

	_, err = s.Claim(ctx, "w1", now.Add(2*time.Hour), now.Add(3*time.Hour))
	assert.NoError(t, err)
}

func TestJobStore_FailRetriesThenDeadLetters(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	job, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 2})
	require.NoError(t, err)

	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, job.ID, "first failure", now))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "first failure", got.LastError)

	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, job.ID, "second failure", now))

	got, err = s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.State, "attempt ceiling dead-letters the job")
}

func TestJobStore_ReapExpiredLeases(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	job, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 3})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "w1", now, now.Add(time.Second))
	require.NoError(t, err)

	reaped, err := s.ReapExpiredLeases(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Empty(t, got.WorkerID)
}

func TestJobStore_CancelPendingJob(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	job, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 3})
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, job.ID))
	got, _ := s.Get(ctx, job.ID)
	assert.Equal(t, domain.JobCancelled, got.State)

	// cancelling a terminal job is a no-op
	require.NoError(t, s.Cancel(ctx, job.ID))

	// cancelled jobs are unclaimable
	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestJobStore_CancelRunningJobIsCooperative(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	job, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 3})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)

	// cancelling a running job only sets the flag
	require.NoError(t, s.Cancel(ctx, job.ID))
	got, _ := s.Get(ctx, job.ID)
	assert.Equal(t, domain.JobRunning, got.State, "the worker keeps ownership until it observes the flag")
	assert.True(t, got.CancelRequested)

	// the worker acknowledges after unwinding
	require.NoError(t, s.AckCancel(ctx, job.ID))
	got, _ = s.Get(ctx, job.ID)
	assert.Equal(t, domain.JobCancelled, got.State)

	// acking a non-running job reports not found
	assert.ErrorIs(t, s.AckCancel(ctx, job.ID), domain.ErrNotFound)
}

func TestJobStore_Clear(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()

	done, err := s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 3})
	require.NoError(t, err)
	_, err = s.Claim(ctx, "w1", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, done.ID))

	_, err = s.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, MaxAttempts: 3})
	require.NoError(t, err)

	cleared, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared, "only terminal jobs are cleared")

	jobs, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestIntentLog_Lifecycle(t *testing.T) {
	l := NewIntentLog()
	ctx := context.Background()

	rec := domain.IntentRecord{
		OpID:       "op_1",
		DocumentID: "doc_a",
		Kind:       domain.JobAdd,
		Steps:      []domain.IntentStep{domain.StepCachePut, domain.StepKeywordWrite},
		Done:       []bool{false, false},
	}
	require.NoError(t, l.Announce(ctx, rec))
	assert.ErrorIs(t, l.Announce(ctx, rec), domain.ErrAlreadyExists)

	incomplete, err := l.ListIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)

	require.NoError(t, l.MarkStepDone(ctx, "op_1", 0))
	got, err := l.Get(ctx, "op_1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.NextStep())

	require.NoError(t, l.Commit(ctx, "op_1"))
	incomplete, err = l.ListIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

func TestIntentLog_CompactKeepsRecentAndIncomplete(t *testing.T) {
	l := NewIntentLog()
	l.CompactHorizon = time.Nanosecond
	ctx := context.Background()

	require.NoError(t, l.Announce(ctx, domain.IntentRecord{OpID: "op_open", Steps: []domain.IntentStep{domain.StepCachePut}, Done: []bool{false}}))
	require.NoError(t, l.Announce(ctx, domain.IntentRecord{OpID: "op_done", Steps: []domain.IntentStep{domain.StepCachePut}, Done: []bool{true}}))
	require.NoError(t, l.Commit(ctx, "op_done"))

	time.Sleep(time.Millisecond)

	removed, err := l.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only terminal records past the horizon compact away")

	_, err = l.Get(ctx, "op_open")
	assert.NoError(t, err)
	_, err = l.Get(ctx, "op_done")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
