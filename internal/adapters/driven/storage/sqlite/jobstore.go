package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.JobStore = (*jobStore)(nil)

type jobStore struct {
	store *Store
}

const jobColumns = `id, kind, document_id, source_kind, source_value, priority,
	attempts, max_attempts, state, worker_id, last_error, created_at,
	visible_at, lease_until, updated_at, cancel_requested`

// Enqueue durably inserts job, assigning it an ID if unset.
func (s *jobStore) Enqueue(ctx context.Context, job domain.Job) (domain.Job, error) {
	if job.ID == "" {
		job.ID = "job_" + uuid.NewString()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	// A zero VisibleAt is kept: the job is claimable at any now.
	job.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, int(job.Kind), string(job.DocumentID), int(job.Source.Kind),
		job.Source.Value, job.Priority, job.Attempts, job.MaxAttempts,
		int(job.State), job.WorkerID, job.LastError, job.CreatedAt,
		job.VisibleAt, nullTime(job.LeaseUntil), job.UpdatedAt, job.CancelRequested)
	if err != nil {
		return domain.Job{}, fmt.Errorf("sqlite: enqueueing job: %w", err)
	}
	return job, nil
}

// Claim atomically leases the highest-priority claimable job to
// workerID. The claim runs as a single UPDATE over a SELECT so two
// workers racing for the same row cannot both win: SQLite serializes
// writers, and the state guard in the WHERE clause makes the loser's
// UPDATE match zero rows.
func (s *jobStore) Claim(ctx context.Context, workerID string, now, leaseUntil time.Time) (domain.Job, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, fmt.Errorf("sqlite: beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id FROM jobs
		WHERE state = ? AND visible_at <= ?
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`, int(domain.JobPending), now)

	var jobID string
	if err := row.Scan(&jobID); err != nil {
		if err == sql.ErrNoRows {
			return domain.Job{}, domain.ErrQueueEmpty
		}
		return domain.Job{}, fmt.Errorf("sqlite: selecting claimable job: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = ?, lease_until = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, int(domain.JobRunning), workerID, leaseUntil, now, jobID, int(domain.JobPending))
	if err != nil {
		return domain.Job{}, fmt.Errorf("sqlite: claiming job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Job{}, domain.ErrQueueEmpty
	}

	job, err := getJobTx(ctx, tx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, fmt.Errorf("sqlite: committing claim: %w", err)
	}
	return job, nil
}

// Heartbeat extends a claimed job's lease.
func (s *jobStore) Heartbeat(ctx context.Context, jobID string, leaseUntil time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET lease_until = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, leaseUntil, time.Now(), jobID, int(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("sqlite: heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete marks a claimed job Succeeded.
func (s *jobStore) Complete(ctx context.Context, jobID string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = '', lease_until = NULL,
			last_error = '', updated_at = ?
		WHERE id = ? AND state = ?
	`, int(domain.JobSucceeded), time.Now(), jobID, int(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("sqlite: completing job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Fail records a failed attempt. The job returns to Pending with
// VisibleAt pushed out to nextVisibleAt unless another attempt would
// exceed its retry budget, in which case it dead-letters to JobFailed.
func (s *jobStore) Fail(ctx context.Context, jobID string, errMsg string, nextVisibleAt time.Time) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	job, err := getJobTx(ctx, tx, jobID)
	if err != nil {
		return err
	}

	job.Attempts++
	nextState := domain.JobPending
	if job.Attempts >= job.MaxAttempts {
		nextState = domain.JobFailed
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = ?, attempts = ?, worker_id = '',
			lease_until = NULL, last_error = ?, visible_at = ?,
			updated_at = ?
		WHERE id = ?
	`, int(nextState), job.Attempts, errMsg, nextVisibleAt, time.Now(), jobID); err != nil {
		return fmt.Errorf("sqlite: failing job: %w", err)
	}

	return tx.Commit()
}

// Cancel requests cancellation: Pending jobs cancel immediately,
// Running jobs only get their cancel_requested flag set — the worker
// executing the job finalises via AckCancel once it has observed the
// flag and wound the operation down. Touching a Running row's state
// here would yank the job out from under a live worker.
func (s *jobStore) Cancel(ctx context.Context, jobID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = '', lease_until = NULL,
			updated_at = ?
		WHERE id = ? AND state = ?
	`, int(domain.JobCancelled), time.Now(), jobID, int(domain.JobPending))
	if err != nil {
		return fmt.Errorf("sqlite: cancelling job: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx, `
		UPDATE jobs SET cancel_requested = 1, updated_at = ?
		WHERE id = ? AND state = ?
	`, time.Now(), jobID, int(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("sqlite: requesting job cancellation: %w", err)
	}
	return nil
}

// AckCancel marks a Running job Cancelled after its worker has wound
// the in-flight operation down at a step boundary.
func (s *jobStore) AckCancel(ctx context.Context, jobID string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = '', lease_until = NULL,
			updated_at = ?
		WHERE id = ? AND state = ?
	`, int(domain.JobCancelled), time.Now(), jobID, int(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("sqlite: acknowledging job cancellation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReapExpiredLeases returns Running jobs whose lease has passed now to
// Pending with Attempts incremented.
func (s *jobStore) ReapExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, worker_id = '', lease_until = NULL,
			attempts = attempts + 1, updated_at = ?
		WHERE state = ? AND lease_until IS NOT NULL AND lease_until <= ?
	`, int(domain.JobPending), now, int(domain.JobRunning), now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reaping leases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting reaped leases: %w", err)
	}
	return int(n), nil
}

// Get returns one job by ID.
func (s *jobStore) Get(ctx context.Context, jobID string) (domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

// List returns jobs, optionally filtered by state; nil means all states.
func (s *jobStore) List(ctx context.Context, state *domain.JobState) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if state != nil {
		query += ` WHERE state = ?`
		args = append(args, int(*state))
	}
	query += ` ORDER BY created_at`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Clear removes every job in a terminal state.
func (s *jobStore) Clear(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE state IN (?, ?, ?)
	`, int(domain.JobSucceeded), int(domain.JobFailed), int(domain.JobCancelled))
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cleared jobs: %w", err)
	}
	return int(n), nil
}

func getJobTx(ctx context.Context, tx *sql.Tx, jobID string) (domain.Job, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

func scanJob(row rowScanner) (domain.Job, error) {
	var job domain.Job
	var kind, sourceKind, state int
	var docID string
	var leaseUntil sql.NullTime
	if err := row.Scan(
		&job.ID, &kind, &docID, &sourceKind, &job.Source.Value,
		&job.Priority, &job.Attempts, &job.MaxAttempts, &state,
		&job.WorkerID, &job.LastError, &job.CreatedAt, &job.VisibleAt,
		&leaseUntil, &job.UpdatedAt, &job.CancelRequested,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, fmt.Errorf("sqlite: scanning job: %w", err)
	}
	job.Kind = domain.JobKind(kind)
	job.DocumentID = domain.DocumentID(docID)
	job.Source.Kind = domain.SourceKind(sourceKind)
	job.State = domain.JobState(state)
	if leaseUntil.Valid {
		job.LeaseUntil = leaseUntil.Time
	}
	return job, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
