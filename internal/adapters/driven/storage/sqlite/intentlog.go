package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.IntentLog = (*intentLog)(nil)

type intentLog struct {
	store *Store

	// compactHorizon controls how old a Committed or RolledBack record
	// must be before Compact drops it.
	compactHorizon time.Duration
}

// DefaultCompactHorizon is how long terminal intent records are kept
// before Compact reclaims them.
const DefaultCompactHorizon = 7 * 24 * time.Hour

// Announce durably appends rec with State set to domain.IntentAnnounced.
func (l *intentLog) Announce(ctx context.Context, rec domain.IntentRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("sqlite: encoding intent steps: %w", err)
	}
	done, err := json.Marshal(rec.Done)
	if err != nil {
		return fmt.Errorf("sqlite: encoding intent done flags: %w", err)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	_, err = l.store.db.ExecContext(ctx, `
		INSERT INTO intents (op_id, document_id, kind, steps, done, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.OpID, string(rec.DocumentID), int(rec.Kind), string(steps),
		string(done), int(domain.IntentAnnounced), rec.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("sqlite: announcing intent: %w", err)
	}
	return nil
}

// MarkStepDone records that step index stepIdx of opID's plan completed.
func (l *intentLog) MarkStepDone(ctx context.Context, opID string, stepIdx int) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning intent transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := getIntentTx(ctx, tx, opID)
	if err != nil {
		return err
	}
	if stepIdx < 0 || stepIdx >= len(rec.Done) {
		return fmt.Errorf("sqlite: step index %d out of range for op %s", stepIdx, opID)
	}
	rec.Done[stepIdx] = true

	done, err := json.Marshal(rec.Done)
	if err != nil {
		return fmt.Errorf("sqlite: encoding intent done flags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE intents SET done = ?, updated_at = ? WHERE op_id = ?
	`, string(done), time.Now(), opID); err != nil {
		return fmt.Errorf("sqlite: marking intent step done: %w", err)
	}

	return tx.Commit()
}

// Commit marks opID's record domain.IntentCommitted.
func (l *intentLog) Commit(ctx context.Context, opID string) error {
	return l.setState(ctx, opID, domain.IntentCommitted)
}

// RollBack marks opID's record domain.IntentRolledBack.
func (l *intentLog) RollBack(ctx context.Context, opID string) error {
	return l.setState(ctx, opID, domain.IntentRolledBack)
}

func (l *intentLog) setState(ctx context.Context, opID string, state domain.IntentState) error {
	res, err := l.store.db.ExecContext(ctx, `
		UPDATE intents SET state = ?, updated_at = ? WHERE op_id = ?
	`, int(state), time.Now(), opID)
	if err != nil {
		return fmt.Errorf("sqlite: setting intent state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns one record by opID.
func (l *intentLog) Get(ctx context.Context, opID string) (domain.IntentRecord, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT op_id, document_id, kind, steps, done, state, created_at, updated_at
		FROM intents WHERE op_id = ?
	`, opID)
	return scanIntent(row)
}

func getIntentTx(ctx context.Context, tx *sql.Tx, opID string) (domain.IntentRecord, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT op_id, document_id, kind, steps, done, state, created_at, updated_at
		FROM intents WHERE op_id = ?
	`, opID)
	return scanIntent(row)
}

// ListIncomplete returns every record still domain.IntentAnnounced, in
// creation order, for Recover to replay after a crash or restart.
func (l *intentLog) ListIncomplete(ctx context.Context) ([]domain.IntentRecord, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT op_id, document_id, kind, steps, done, state, created_at, updated_at
		FROM intents WHERE state = ? ORDER BY created_at
	`, int(domain.IntentAnnounced))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing incomplete intents: %w", err)
	}
	defer rows.Close()

	var out []domain.IntentRecord
	for rows.Next() {
		rec, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Compact drops Committed and RolledBack records older than the
// configured horizon, returning the count removed.
func (l *intentLog) Compact(ctx context.Context) (int, error) {
	horizon := l.compactHorizon
	if horizon <= 0 {
		horizon = DefaultCompactHorizon
	}
	cutoff := time.Now().Add(-horizon)

	res, err := l.store.db.ExecContext(ctx, `
		DELETE FROM intents WHERE state IN (?, ?) AND updated_at <= ?
	`, int(domain.IntentCommitted), int(domain.IntentRolledBack), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: compacting intents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting compacted intents: %w", err)
	}
	return int(n), nil
}

func scanIntent(row rowScanner) (domain.IntentRecord, error) {
	var rec domain.IntentRecord
	var docID, stepsJSON, doneJSON string
	var kind, state int
	if err := row.Scan(&rec.OpID, &docID, &kind, &stepsJSON, &doneJSON,
		&state, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.IntentRecord{}, domain.ErrNotFound
		}
		return domain.IntentRecord{}, fmt.Errorf("sqlite: scanning intent: %w", err)
	}
	rec.DocumentID = domain.DocumentID(docID)
	rec.Kind = domain.JobKind(kind)
	rec.State = domain.IntentState(state)

	if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
		return domain.IntentRecord{}, fmt.Errorf("sqlite: decoding intent steps: %w", err)
	}
	if err := json.Unmarshal([]byte(doneJSON), &rec.Done); err != nil {
		return domain.IntentRecord{}, fmt.Errorf("sqlite: decoding intent done flags: %w", err)
	}
	return rec, nil
}
