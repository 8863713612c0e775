package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.IntentLog = (*IntentLog)(nil)

// IntentLog is an in-memory implementation of driven.IntentLog.
type IntentLog struct {
	mu      sync.Mutex
	records map[string]domain.IntentRecord

	// CompactHorizon controls how old a terminal record must be before
	// Compact drops it. Zero means the sqlite default.
	CompactHorizon time.Duration
}

// NewIntentLog creates an empty in-memory intent log.
func NewIntentLog() *IntentLog {
	return &IntentLog{records: make(map[string]domain.IntentRecord)}
}

// Announce appends rec with State set to domain.IntentAnnounced.
func (l *IntentLog) Announce(_ context.Context, rec domain.IntentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.OpID]; exists {
		return domain.ErrAlreadyExists
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.State = domain.IntentAnnounced
	rec.Steps = append([]domain.IntentStep(nil), rec.Steps...)
	rec.Done = append([]bool(nil), rec.Done...)
	l.records[rec.OpID] = rec
	return nil
}

// MarkStepDone records that step index stepIdx of opID's plan completed.
func (l *IntentLog) MarkStepDone(_ context.Context, opID string, stepIdx int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[opID]
	if !ok {
		return domain.ErrNotFound
	}
	if stepIdx < 0 || stepIdx >= len(rec.Done) {
		return fmt.Errorf("memory: step index %d out of range for op %s", stepIdx, opID)
	}
	rec.Done[stepIdx] = true
	rec.UpdatedAt = time.Now()
	l.records[opID] = rec
	return nil
}

// Commit marks opID's record domain.IntentCommitted.
func (l *IntentLog) Commit(_ context.Context, opID string) error {
	return l.setState(opID, domain.IntentCommitted)
}

// RollBack marks opID's record domain.IntentRolledBack.
func (l *IntentLog) RollBack(_ context.Context, opID string) error {
	return l.setState(opID, domain.IntentRolledBack)
}

func (l *IntentLog) setState(opID string, state domain.IntentState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[opID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.State = state
	rec.UpdatedAt = time.Now()
	l.records[opID] = rec
	return nil
}

// Get returns one record by opID.
func (l *IntentLog) Get(_ context.Context, opID string) (domain.IntentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[opID]
	if !ok {
		return domain.IntentRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// ListIncomplete returns every record still domain.IntentAnnounced, in
// creation order.
func (l *IntentLog) ListIncomplete(_ context.Context) ([]domain.IntentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.IntentRecord
	for _, rec := range l.records {
		if rec.State == domain.IntentAnnounced {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Compact drops terminal records older than the horizon.
func (l *IntentLog) Compact(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	horizon := l.CompactHorizon
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-horizon)
	removed := 0
	for opID, rec := range l.records {
		if rec.State == domain.IntentAnnounced {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			delete(l.records, opID)
			removed++
		}
	}
	return removed, nil
}
