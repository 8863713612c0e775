package driven

import (
	"context"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// SourceContent is one full read of a Source's raw bytes plus the
// transport-level metadata the fingerprint records alongside the hash.
type SourceContent struct {
	Data     []byte
	MimeType string
	ModTime  time.Time
}

// SourceReader resolves a Source to its current bytes. The core never
// fetches anything itself — local file reads and remote downloads both
// live behind this port, so ingestion logic only ever sees bytes.
type SourceReader interface {
	Read(ctx context.Context, source domain.Source) (SourceContent, error)
}
