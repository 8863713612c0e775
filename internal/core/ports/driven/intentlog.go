package driven

import (
	"context"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// IntentLog is the append-only durable log backing the Index Manager's
// Plan→Announce→Execute→Commit protocol. Announce must
// durably persist before Execute begins writing to any adapter, so a
// crash between them leaves a resumable trail, not silent data loss.
type IntentLog interface {
	// Announce durably appends rec with State set to domain.IntentAnnounced.
	Announce(ctx context.Context, rec domain.IntentRecord) error

	// MarkStepDone records that step index stepIdx of opID's plan completed.
	MarkStepDone(ctx context.Context, opID string, stepIdx int) error

	// Commit marks opID's record domain.IntentCommitted.
	Commit(ctx context.Context, opID string) error

	// RollBack marks opID's record domain.IntentRolledBack.
	RollBack(ctx context.Context, opID string) error

	// Get returns one record by opID.
	Get(ctx context.Context, opID string) (domain.IntentRecord, error)

	// ListIncomplete returns every record still domain.IntentAnnounced,
	// for Recover to replay after a crash or restart.
	ListIncomplete(ctx context.Context) ([]domain.IntentRecord, error)

	// Compact drops Committed and RolledBack records older than the
	// configured horizon, returning the count removed.
	Compact(ctx context.Context) (int, error)
}
