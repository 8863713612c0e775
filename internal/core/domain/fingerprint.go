package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Fingerprint is the content identity of a document's raw bytes at a
// point in time: a content hash plus the declared size/mtime pair, which
// the Change Detector compares only to spot MetadataOnly drift; content
// is always re-hashed. It is never used to decide OptionsChanged —
// that comparison is against the separate options fingerprint recorded
// alongside it.
type Fingerprint struct {
	Hash    [sha256.Size]byte
	Size    int64
	ModTime time.Time
}

// ComputeFingerprint hashes raw content bytes. size/modTime are recorded
// as metadata, not mixed into the hash, so two byte-identical documents
// fetched at different times still compare Equal.
func ComputeFingerprint(content []byte, size int64, modTime time.Time) Fingerprint {
	return Fingerprint{
		Hash:    sha256.Sum256(content),
		Size:    size,
		ModTime: modTime,
	}
}

// String renders the content hash as lowercase hex, the form stored and
// compared by the Fingerprint Store.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f.Hash[:])
}

// Equal compares only the content hash: size and modTime are advisory,
// not part of document identity (two fetches of the same bytes via
// different transports may report different mtimes).
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Hash == other.Hash
}

// IsZero reports whether f carries no content identity.
func (f Fingerprint) IsZero() bool {
	return f.Hash == [sha256.Size]byte{}
}

// OptionsFingerprint hashes the subset of ingest configuration that
// changes what an ingest run produces from identical bytes (chunk size,
// chunk overlap, extraction mode, prompt template). Keys are sorted so
// the result is stable regardless of map iteration order.
func OptionsFingerprint(options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, options[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
