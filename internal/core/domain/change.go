package domain

// ChangeKind classifies what, if anything, differs between a document's
// previously recorded Fingerprint/options and its current read. The
// Change Detector returns exactly one of these per document; the Index
// Manager's Plan step switches on it to decide which ports to touch.
//
// This is a deliberately small, fully-deterministic table — unlike the
// percentage-threshold similarity heuristics of earlier content-drift
// detectors, every case here is resolved by a direct comparison with no
// tunable thresholds.
type ChangeKind int

const (
	// Unchanged: content hash and options fingerprint both match the
	// last recorded state. No work needed.
	Unchanged ChangeKind = iota
	// NewDocument: no prior Fingerprint Store entry exists for this Source.
	NewDocument
	// ContentChanged: the content hash differs from the last recorded one.
	ContentChanged
	// OptionsChanged: content hash matches but the options fingerprint
	// does not — re-extraction is needed under a new DocumentID even
	// though the underlying bytes are identical.
	OptionsChanged
	// MetadataOnly: neither hash nor options changed, but source-level
	// metadata (the fingerprint's declared size or mtime) did.
	MetadataOnly
	// Corrupt: the recorded state is internally inconsistent (e.g. a
	// Ready record with no chunk IDs, a record left Pending, Indexing or
	// Removing, or a fingerprint with no registry record) and needs
	// repair before any other comparison is meaningful.
	Corrupt
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case NewDocument:
		return "new_document"
	case ContentChanged:
		return "content_changed"
	case OptionsChanged:
		return "options_changed"
	case MetadataOnly:
		return "metadata_only"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// RequiresReindex reports whether the Index Manager must run the full
// extract-chunk-embed-write pipeline for this change, as opposed to a
// metadata-only touch.
func (k ChangeKind) RequiresReindex() bool {
	switch k {
	case NewDocument, ContentChanged, OptionsChanged, Corrupt:
		return true
	default:
		return false
	}
}
