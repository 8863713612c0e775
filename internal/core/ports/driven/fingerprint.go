// Package driven declares the ports the core's services call out
// through: storage, the two search adapters, and the external
// extraction/embedding/keyword capabilities. Concrete implementations
// live under internal/adapters/driven.
package driven

import (
	"context"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// FingerprintStore is the durable, content-addressed record of what
// each Source looked like the last time it was read. The Change
// Detector consults it before any expensive extraction work runs.
type FingerprintStore interface {
	// Get returns the last recorded fingerprint for source, or
	// domain.ErrNotFound if source has never been seen.
	Get(ctx context.Context, source domain.Source) (domain.Fingerprint, error)

	// Put durably records fp for source, overwriting any prior entry.
	// Implementations must fsync before returning: callers rely on this
	// being true once Put returns, not eventually.
	Put(ctx context.Context, source domain.Source, fp domain.Fingerprint) error

	// Delete removes the recorded fingerprint for source.
	Delete(ctx context.Context, source domain.Source) error

	// List returns every known Source, for maintenance sweeps.
	List(ctx context.Context) ([]domain.Source, error)

	// Sweep deletes entries last updated at or before olderThan,
	// returning the count removed. Sweeping a live source is safe:
	// its next ingest classifies as NewDocument and replays
	// idempotently under the same derived DocumentID.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
