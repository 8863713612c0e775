package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.Job)}
}

// Enqueue inserts job, assigning it an ID if unset.
func (s *JobStore) Enqueue(_ context.Context, job domain.Job) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = "job_" + uuid.NewString()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	// A zero VisibleAt is kept: the job is claimable at any now.
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return job, nil
}

// Claim leases the highest-priority claimable job to workerID.
func (s *JobStore) Claim(_ context.Context, workerID string, now, leaseUntil time.Time) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.Job
	for _, job := range s.jobs {
		if job.Claimable(now) {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return domain.Job{}, domain.ErrQueueEmpty
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	job := candidates[0]
	job.State = domain.JobRunning
	job.WorkerID = workerID
	job.LeaseUntil = leaseUntil
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return job, nil
}

// Heartbeat extends a claimed job's lease.
func (s *JobStore) Heartbeat(_ context.Context, jobID string, leaseUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.State != domain.JobRunning {
		return domain.ErrNotFound
	}
	job.LeaseUntil = leaseUntil
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

// Complete marks a claimed job Succeeded.
func (s *JobStore) Complete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.State != domain.JobRunning {
		return domain.ErrNotFound
	}
	job.State = domain.JobSucceeded
	job.WorkerID = ""
	job.LeaseUntil = time.Time{}
	job.LastError = ""
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

// Fail records a failed attempt, returning the job to Pending with
// backoff or dead-lettering it once retries are exhausted.
func (s *JobStore) Fail(_ context.Context, jobID string, errMsg string, nextVisibleAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Attempts++
	if job.Attempts >= job.MaxAttempts {
		job.State = domain.JobFailed
	} else {
		job.State = domain.JobPending
	}
	job.WorkerID = ""
	job.LeaseUntil = time.Time{}
	job.LastError = errMsg
	job.VisibleAt = nextVisibleAt
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

// Cancel requests cancellation: Pending jobs cancel immediately,
// Running jobs only get their CancelRequested flag set for the worker
// to observe at its next step boundary. A no-op in terminal states.
func (s *JobStore) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	switch job.State {
	case domain.JobPending:
		job.State = domain.JobCancelled
		job.WorkerID = ""
		job.LeaseUntil = time.Time{}
	case domain.JobRunning:
		job.CancelRequested = true
	default:
		return nil
	}
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

// AckCancel marks a Running job Cancelled after its worker has wound
// the in-flight operation down.
func (s *JobStore) AckCancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.State != domain.JobRunning {
		return domain.ErrNotFound
	}
	job.State = domain.JobCancelled
	job.WorkerID = ""
	job.LeaseUntil = time.Time{}
	job.UpdatedAt = time.Now()
	s.jobs[jobID] = job
	return nil
}

// ReapExpiredLeases returns Running jobs with expired leases to Pending.
func (s *JobStore) ReapExpiredLeases(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for id, job := range s.jobs {
		if job.State != domain.JobRunning || job.LeaseUntil.IsZero() || job.LeaseUntil.After(now) {
			continue
		}
		job.State = domain.JobPending
		job.WorkerID = ""
		job.LeaseUntil = time.Time{}
		job.Attempts++
		job.UpdatedAt = now
		s.jobs[id] = job
		reaped++
	}
	return reaped, nil
}

// Get returns one job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

// List returns jobs, optionally filtered by state; nil means all states.
func (s *JobStore) List(_ context.Context, state *domain.JobState) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if state != nil && job.State != *state {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Clear removes every job in a terminal state.
func (s *JobStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		switch job.State {
		case domain.JobSucceeded, domain.JobFailed, domain.JobCancelled:
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
