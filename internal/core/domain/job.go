package domain

import "time"

// JobKind identifies the kind of work a queued Job performs.
type JobKind int

const (
	// JobAdd ingests a document that has never been indexed.
	JobAdd JobKind = iota
	// JobUpdate re-ingests a document whose content or options changed.
	JobUpdate
	// JobRemove tears a document down from all adapters.
	JobRemove
	// JobRepair re-runs consistency repair for one document.
	JobRepair
)

func (k JobKind) String() string {
	switch k {
	case JobAdd:
		return "add"
	case JobUpdate:
		return "update"
	case JobRemove:
		return "remove"
	case JobRepair:
		return "repair"
	default:
		return "unknown"
	}
}

// JobState tracks a Job's position in its lifecycle.
type JobState int

const (
	// JobPending is queued, waiting for VisibleAt and a free worker.
	JobPending JobState = iota
	// JobRunning has been leased by a worker.
	JobRunning
	// JobSucceeded completed without error.
	JobSucceeded
	// JobFailed exhausted its retry budget.
	JobFailed
	// JobCancelled was cancelled before or during execution.
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is one durable unit of work in the priority queue. A
// worker claims a Job by writing its own WorkerID and a LeaseUntil
// deadline; another worker may steal it once the lease expires.
type Job struct {
	ID          string
	Kind        JobKind
	DocumentID  DocumentID
	Source      Source
	Priority    int
	Attempts    int
	MaxAttempts int
	State       JobState
	WorkerID    string
	LastError   string
	CreatedAt   time.Time
	VisibleAt   time.Time
	LeaseUntil  time.Time
	UpdatedAt   time.Time

	// CancelRequested signals a Running job's worker to stop at its
	// next step boundary. Cancellation of a Running job is cooperative:
	// the flag is set durably, the worker observes it, winds the
	// in-flight operation down, and only then is the job marked
	// Cancelled. Pending jobs skip the handshake and cancel directly.
	CancelRequested bool
}

// Claimable reports whether the job can be leased right now: pending,
// visible, and not already leased by a live worker.
func (j Job) Claimable(now time.Time) bool {
	if j.State != JobPending {
		return false
	}
	return !j.VisibleAt.After(now)
}

// ExhaustedRetries reports whether another attempt would exceed the
// job's retry budget.
func (j Job) ExhaustedRetries() bool {
	return j.Attempts >= j.MaxAttempts
}
