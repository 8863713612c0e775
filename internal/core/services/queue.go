package services

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/core/services/docmutex"
	"github.com/lumenforge/docindex/internal/logger"
)

// Handler runs one Job to completion. Returning a *domain.TaxonomyError
// with KindTransient retries the job with backoff; any other error
// dead-letters it once retries are exhausted; a nil error completes it.
type Handler func(ctx context.Context, job domain.Job) error

// PoolConfig controls the Worker Pool's concurrency and lease behaviour.
type PoolConfig struct {
	Workers       int
	LeaseDuration time.Duration
	PollInterval  time.Duration
	ReapInterval  time.Duration
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

// DefaultPoolConfig mirrors domain.DefaultConfig's worker count.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:       4,
		LeaseDuration: 2 * time.Minute,
		PollInterval:  500 * time.Millisecond,
		ReapInterval:  30 * time.Second,
		BaseBackoff:   2 * time.Second,
		MaxBackoff:    5 * time.Minute,
	}
}

// WorkerPool claims Jobs from a JobStore and runs them against a
// Handler with bounded parallelism. Jobs targeting the same DocumentID
// never run concurrently — a worker that claims one blocks on
// docmutex until any in-flight job for that document releases it —
// while jobs on distinct documents run fully in parallel up to
// Workers.
type WorkerPool struct {
	store   driven.JobStore
	handler Handler
	cfg     PoolConfig
	docs    *docmutex.Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewWorkerPool builds a WorkerPool over store, dispatching claimed jobs
// to handler.
func NewWorkerPool(store driven.JobStore, handler Handler, cfg PoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolConfig().Workers
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = DefaultPoolConfig().LeaseDuration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPoolConfig().PollInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultPoolConfig().ReapInterval
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultPoolConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultPoolConfig().MaxBackoff
	}
	return &WorkerPool{
		store:   store,
		handler: handler,
		cfg:     cfg,
		docs:    docmutex.NewRegistry(),
	}
}

// Start launches cfg.Workers worker goroutines plus one lease-reaper
// goroutine. It is a no-op if the pool is already running.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		workerID := workerIDFor(i)
		p.wg.Add(1)
		go p.runWorker(runCtx, workerID)
	}

	p.wg.Add(1)
	go p.runReaper(runCtx)

	logger.Info("worker pool: started %d workers", p.cfg.Workers)
}

// Stop signals every worker and the reaper to exit and blocks until
// they do. A job a worker is mid-handler for is allowed to finish;
// Stop does not interrupt Handler itself, only the claim loop.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.started = false
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	logger.Info("worker pool: stopped")
}

func workerIDFor(i int) string {
	return "worker-" + time.Now().Format("150405") + "-" + strconv.Itoa(i)
}

func (p *WorkerPool) runWorker(ctx context.Context, workerID string) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.claimAndRun(ctx, workerID)
		}
	}
}

func (p *WorkerPool) claimAndRun(ctx context.Context, workerID string) {
	now := time.Now()
	job, err := p.store.Claim(ctx, workerID, now, now.Add(p.cfg.LeaseDuration))
	if err != nil {
		if !errors.Is(err, domain.ErrQueueEmpty) {
			logger.Warn("worker pool: claim failed: %v", err)
		}
		return
	}

	unlock := p.docs.Lock(string(job.DocumentID))
	defer unlock()

	logger.Debug("worker pool: %s running job %s (%s) for %s", workerID, job.ID, job.Kind, job.DocumentID)

	// Each job gets its own cancellable context. The watcher polls the
	// store's CancelRequested flag and cancels jobCtx when it's set;
	// the handler observes the cancellation at its next step boundary
	// and unwinds, leaving its Intent resumable.
	jobCtx, cancelJob := context.WithCancel(ctx)
	watcherDone := make(chan struct{})
	go p.watchCancellation(jobCtx, job.ID, cancelJob, watcherDone)

	runErr := p.handler(jobCtx, job)
	cancelJob()
	<-watcherDone

	if runErr == nil {
		if err := p.store.Complete(ctx, job.ID); err != nil {
			logger.Warn("worker pool: complete failed for job %s: %v", job.ID, err)
		}
		return
	}

	if p.jobWasCancelled(ctx, job.ID, runErr) {
		if err := p.store.AckCancel(ctx, job.ID); err != nil {
			logger.Warn("worker pool: cancel ack failed for job %s: %v", job.ID, err)
		}
		return
	}

	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		// Pool shutdown interrupted the job mid-flight; its Intent is
		// resumable and its lease will expire, so leave it for the
		// reaper rather than burning an attempt.
		return
	}

	if job.Attempts+1 >= job.MaxAttempts {
		logger.Error("worker pool: job %s (%s) dead-lettered after %d attempts: %v",
			job.ID, job.Kind, job.Attempts+1, runErr)
	}

	backoff := p.jitter(p.backoffFor(job.Attempts + 1))
	if err := p.store.Fail(ctx, job.ID, runErr.Error(), time.Now().Add(backoff)); err != nil {
		logger.Warn("worker pool: fail failed for job %s: %v", job.ID, err)
	}
}

// watchCancellation polls the store for a cancellation request against
// jobID and fires cancelJob when one appears. It exits when jobCtx is
// done (handler finished, request observed, or pool shutdown).
func (p *WorkerPool) watchCancellation(jobCtx context.Context, jobID string, cancelJob context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-jobCtx.Done():
			return
		case <-ticker.C:
			job, err := p.store.Get(jobCtx, jobID)
			if err != nil {
				continue
			}
			if job.CancelRequested {
				logger.Debug("worker pool: cancellation requested for job %s", jobID)
				cancelJob()
				return
			}
		}
	}
}

// jobWasCancelled decides whether runErr means the job was cancelled
// on request: either the handler reported cancellation itself, or it
// unwound on a context cancellation that traces back to the store's
// CancelRequested flag rather than pool shutdown.
func (p *WorkerPool) jobWasCancelled(ctx context.Context, jobID string, runErr error) bool {
	var taxErr *domain.TaxonomyError
	if errors.As(runErr, &taxErr) && taxErr.Kind == domain.KindCancellation {
		return true
	}
	if !errors.Is(runErr, context.Canceled) {
		return false
	}
	job, err := p.store.Get(ctx, jobID)
	return err == nil && job.CancelRequested
}

// jitter applies full jitter to a backoff ceiling: the actual delay is
// uniform in (0, d], so a burst of same-moment failures doesn't retry
// in lockstep.
func (p *WorkerPool) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(1 + rand.Int63n(int64(d)))
}

// backoffFor returns the exponential backoff ceiling for the given
// (1-indexed) attempt number, capped at MaxBackoff.
func (p *WorkerPool) backoffFor(attempt int) time.Duration {
	d := p.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

func (p *WorkerPool) runReaper(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.store.ReapExpiredLeases(ctx, time.Now())
			if err != nil {
				logger.Warn("worker pool: reap failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("worker pool: reaped %d expired leases", n)
			}
		}
	}
}
