package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/lumenforge/docindex/internal/adapters/driven/storage/memory"
	"github.com/lumenforge/docindex/internal/core/domain"
)

func fastPoolConfig(workers int) PoolConfig {
	return PoolConfig{
		Workers:       workers,
		LeaseDuration: time.Minute,
		PollInterval:  5 * time.Millisecond,
		ReapInterval:  50 * time.Millisecond,
		BaseBackoff:   time.Millisecond,
		MaxBackoff:    10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestWorkerPool_RunsJobs(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[string]int)
	handler := func(_ context.Context, job domain.Job) error {
		mu.Lock()
		seen[job.ID]++
		mu.Unlock()
		return nil
	}

	for i := 0; i < 5; i++ {
		_, err := store.Enqueue(ctx, domain.Job{
			Kind: domain.JobAdd, DocumentID: domain.DocumentID("doc_" + string(rune('a'+i))),
			MaxAttempts: 3,
		})
		require.NoError(t, err)
	}

	pool := NewWorkerPool(store, handler, fastPoolConfig(3))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		succeeded := domain.JobSucceeded
		jobs, err := store.List(ctx, &succeeded)
		return err == nil && len(jobs) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 5)
	for id, count := range seen {
		assert.Equal(t, 1, count, "job %s ran more than once", id)
	}
}

func TestWorkerPool_RetriesTransientThenSucceeds(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	var mu sync.Mutex
	attempts := 0
	handler := func(_ context.Context, _ domain.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return domain.NewTaxonomyError(domain.KindTransient, domain.ErrUpstreamUnavailable)
		}
		return nil
	}

	_, err := store.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, DocumentID: "doc_retry", MaxAttempts: 5})
	require.NoError(t, err)

	pool := NewWorkerPool(store, handler, fastPoolConfig(1))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		succeeded := domain.JobSucceeded
		jobs, err := store.List(ctx, &succeeded)
		return err == nil && len(jobs) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestWorkerPool_DeadLettersAfterRetryCeiling(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	handler := func(_ context.Context, _ domain.Job) error {
		return errors.New("persistent failure")
	}

	_, err := store.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, DocumentID: "doc_doomed", MaxAttempts: 2})
	require.NoError(t, err)

	pool := NewWorkerPool(store, handler, fastPoolConfig(1))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		failed := domain.JobFailed
		jobs, err := store.List(ctx, &failed)
		return err == nil && len(jobs) == 1
	})

	failed := domain.JobFailed
	jobs, err := store.List(ctx, &failed)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempts)
	assert.Contains(t, jobs[0].LastError, "persistent failure")
}

func TestWorkerPool_PerDocumentSerialization(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int
	handler := func(_ context.Context, _ domain.Job) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	// six jobs, all for the same document
	for i := 0; i < 6; i++ {
		_, err := store.Enqueue(ctx, domain.Job{Kind: domain.JobUpdate, DocumentID: "doc_hot", MaxAttempts: 3})
		require.NoError(t, err)
	}

	pool := NewWorkerPool(store, handler, fastPoolConfig(4))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		succeeded := domain.JobSucceeded
		jobs, err := store.List(ctx, &succeeded)
		return err == nil && len(jobs) == 6
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive, "same-document jobs must never overlap")
}

func TestWorkerPool_PriorityOrdering(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	handler := func(_ context.Context, job domain.Job) error {
		mu.Lock()
		order = append(order, job.Priority)
		mu.Unlock()
		return nil
	}

	for _, priority := range []int{1, 5, 3} {
		_, err := store.Enqueue(ctx, domain.Job{
			Kind: domain.JobAdd, DocumentID: domain.DocumentID(string(rune('a' + priority))),
			Priority: priority, MaxAttempts: 3,
		})
		require.NoError(t, err)
	}

	// single worker drains strictly by priority
	pool := NewWorkerPool(store, handler, fastPoolConfig(1))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 3, 1}, order)
}

func TestWorkerPool_CancellationMarksJobCancelled(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	handler := func(_ context.Context, _ domain.Job) error {
		return domain.NewTaxonomyError(domain.KindCancellation, domain.ErrCancelled)
	}

	job, err := store.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, DocumentID: "doc_c", MaxAttempts: 3})
	require.NoError(t, err)

	pool := NewWorkerPool(store, handler, fastPoolConfig(1))
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, 5*time.Second, func() bool {
		got, err := store.Get(ctx, job.ID)
		return err == nil && got.State == domain.JobCancelled
	})
}

func TestWorkerPool_CooperativeCancelOfRunningJob(t *testing.T) {
	store := storagemem.NewJobStore()
	ctx := context.Background()

	// the handler simulates step boundaries: it blocks until its job
	// context is cancelled, then unwinds with the context's error
	started := make(chan struct{}, 1)
	handler := func(jobCtx context.Context, _ domain.Job) error {
		started <- struct{}{}
		<-jobCtx.Done()
		return jobCtx.Err()
	}

	job, err := store.Enqueue(ctx, domain.Job{Kind: domain.JobAdd, DocumentID: "doc_slow", MaxAttempts: 3})
	require.NoError(t, err)

	pool := NewWorkerPool(store, handler, fastPoolConfig(1))
	pool.Start(ctx)
	defer pool.Stop()

	<-started

	// a cancel against the running job sets the flag; the watcher
	// relays it to the handler, which unwinds, and the pool acks
	require.NoError(t, store.Cancel(ctx, job.ID))

	waitFor(t, 5*time.Second, func() bool {
		got, err := store.Get(ctx, job.ID)
		return err == nil && got.State == domain.JobCancelled
	})

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts, "a cancelled job burns no retry attempts")
}

func TestWorkerPool_BackoffGrowsAndCaps(t *testing.T) {
	pool := NewWorkerPool(storagemem.NewJobStore(), nil, PoolConfig{
		Workers: 1, BaseBackoff: time.Second, MaxBackoff: 10 * time.Second,
	})

	assert.Equal(t, time.Second, pool.backoffFor(1))
	assert.Equal(t, 2*time.Second, pool.backoffFor(2))
	assert.Equal(t, 4*time.Second, pool.backoffFor(3))
	assert.Equal(t, 10*time.Second, pool.backoffFor(5), "backoff caps at MaxBackoff")
	assert.Equal(t, 10*time.Second, pool.backoffFor(50))
}

func TestWorkerPool_JitterWithinBounds(t *testing.T) {
	pool := NewWorkerPool(storagemem.NewJobStore(), nil, PoolConfig{
		Workers: 1, BaseBackoff: time.Second, MaxBackoff: 10 * time.Second,
	})

	ceiling := 4 * time.Second
	for i := 0; i < 100; i++ {
		d := pool.jitter(ceiling)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, ceiling)
	}
}
