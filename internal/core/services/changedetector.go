package services

import (
	"context"
	"errors"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// ChangeDetector classifies what, if anything, differs between a newly
// observed Source and the Registry's last-recorded state for it. It is
// a pure deterministic comparison — no thresholds, no similarity
// scoring.
type ChangeDetector struct {
	registry    driven.Registry
	fingerprint driven.FingerprintStore
}

// NewChangeDetector builds a ChangeDetector over the given Registry and
// FingerprintStore.
func NewChangeDetector(registry driven.Registry, fingerprint driven.FingerprintStore) *ChangeDetector {
	return &ChangeDetector{registry: registry, fingerprint: fingerprint}
}

// Detect compares the current read of source (its content fingerprint
// and the options fingerprint that would govern re-processing it)
// against the last-recorded Fingerprint Store entry and Registry
// record, and returns the ChangeKind the Index Manager should act on.
func (d *ChangeDetector) Detect(
	ctx context.Context, source domain.Source, fp domain.Fingerprint, optionsFP string,
) (domain.ChangeKind, *domain.DocumentRecord, error) {
	priorFP, err := d.fingerprint.Get(ctx, source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewDocument, nil, nil
		}
		return domain.Unchanged, nil, err
	}

	record, err := d.registry.GetDocumentBySource(ctx, source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A fingerprint with no registry record is itself a
			// consistency violation: the two stores disagree about
			// whether this source was ever indexed.
			return domain.Corrupt, nil, nil
		}
		return domain.Unchanged, nil, err
	}

	if corrupt, detail := d.isCorrupt(ctx, record); corrupt {
		record.Error = detail
		return domain.Corrupt, &record, nil
	}

	contentSame := priorFP.Equal(fp)
	optionsSame := record.OptionsFP == optionsFP

	switch {
	case !contentSame:
		// If both content and options changed, ContentChanged wins:
		// a full reprocess already covers whatever the option change
		// would have triggered on its own.
		return domain.ContentChanged, &record, nil
	case !optionsSame:
		return domain.OptionsChanged, &record, nil
	case d.metadataDrifted(record, fp):
		return domain.MetadataOnly, &record, nil
	default:
		return domain.Unchanged, &record, nil
	}
}

// isCorrupt reports whether record's own bookkeeping is internally
// inconsistent in a way that must be repaired before any content/options
// comparison is meaningful.
func (d *ChangeDetector) isCorrupt(_ context.Context, record domain.DocumentRecord) (bool, string) {
	if record.State == domain.StateReady && len(record.ChunkIDs) == 0 {
		return true, "ready record has no chunk ids"
	}
	if record.State == domain.StateReady {
		return false, ""
	}
	// Any non-terminal state left over from a prior run (Pending,
	// Indexing, Removing) without an in-progress Intent to resume is a
	// crash artifact the repair path should pick up; Recover handles
	// the case where an Intent IS in progress before this is ever
	// called, so reaching here with such a state means Recover found
	// nothing to replay.
	if record.State == domain.StatePending || record.State == domain.StateIndexing || record.State == domain.StateRemoving {
		return true, "record stuck in " + record.State.String() + " with no resumable intent"
	}
	return false, ""
}

// metadataDrifted reports whether source-level metadata the Registry
// tracks (advisory fields like declared size/mtime) moved without the
// content hash changing — e.g. a server re-sent identical bytes with a
// new Last-Modified header.
func (d *ChangeDetector) metadataDrifted(record domain.DocumentRecord, fp domain.Fingerprint) bool {
	return record.Fingerprint.Size != fp.Size || !record.Fingerprint.ModTime.Equal(fp.ModTime)
}
