package driven

import (
	"context"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// JobStore is the durable priority queue backing the Worker Pool.
// Claim and Heartbeat implement lease-based ownership:
// a worker that dies mid-job leaves its lease to expire, and the job
// becomes claimable again with Attempts incremented.
type JobStore interface {
	// Enqueue durably inserts job, assigning it an ID if unset.
	Enqueue(ctx context.Context, job domain.Job) (domain.Job, error)

	// Claim atomically leases the highest-priority claimable job
	// (Pending, VisibleAt <= now) to workerID until leaseUntil, and
	// returns it with State set to Running. Returns domain.ErrQueueEmpty
	// if nothing is claimable.
	Claim(ctx context.Context, workerID string, now, leaseUntil time.Time) (domain.Job, error)

	// Heartbeat extends a claimed job's lease, proving the worker is
	// still alive.
	Heartbeat(ctx context.Context, jobID string, leaseUntil time.Time) error

	// Complete marks a claimed job Succeeded.
	Complete(ctx context.Context, jobID string) error

	// Fail records a failed attempt. If the job has exhausted its
	// retry budget it moves to JobFailed; otherwise it returns to
	// JobPending with VisibleAt pushed out by backoff and Attempts
	// incremented.
	Fail(ctx context.Context, jobID string, errMsg string, nextVisibleAt time.Time) error

	// Cancel requests cancellation. A Pending job transitions to
	// Cancelled immediately; a Running job only gets its
	// CancelRequested flag set — its worker observes the flag at the
	// next step boundary and finalises via AckCancel. A no-op for jobs
	// already in a terminal state.
	Cancel(ctx context.Context, jobID string) error

	// AckCancel marks a Running job Cancelled after its worker has
	// observed the cancellation request and wound the operation down.
	AckCancel(ctx context.Context, jobID string) error

	// ReapExpiredLeases returns Running jobs whose lease has passed now
	// to Pending with Attempts incremented, and reports how many were reaped.
	ReapExpiredLeases(ctx context.Context, now time.Time) (int, error)

	// Get returns one job by ID.
	Get(ctx context.Context, jobID string) (domain.Job, error)

	// List returns jobs, optionally filtered by state; nil means all states.
	List(ctx context.Context, state *domain.JobState) ([]domain.Job, error)

	// Clear removes every job in a terminal state (Succeeded, Failed, Cancelled).
	Clear(ctx context.Context) (int, error)
}
