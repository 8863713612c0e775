package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceKind distinguishes where a document's bytes come from.
type SourceKind int

const (
	// SourceKindPath identifies a document by local filesystem path.
	SourceKindPath SourceKind = iota
	// SourceKindURL identifies a document by remote URL.
	SourceKindURL
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindPath:
		return "path"
	case SourceKindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Source identifies where a document came from. It is a tagged union:
// Kind selects which shape Value holds. Two Sources name the same
// logical document iff Kind and normalised Value match.
type Source struct {
	Kind  SourceKind
	Value string
}

// NewPathSource builds a normalised Source for a local filesystem path.
func NewPathSource(path string) Source {
	return Source{Kind: SourceKindPath, Value: path}.Normalize()
}

// NewURLSource builds a normalised Source for a remote URL.
func NewURLSource(url string) Source {
	return Source{Kind: SourceKindURL, Value: url}.Normalize()
}

// Normalize returns a canonical form so equivalent inputs ("./a.pdf" vs
// "a.pdf", a trailing-slash URL) collapse to the same identity before
// fingerprinting and ID derivation.
func (s Source) Normalize() Source {
	switch s.Kind {
	case SourceKindPath:
		return Source{Kind: s.Kind, Value: filepath.Clean(s.Value)}
	case SourceKindURL:
		return Source{Kind: s.Kind, Value: strings.TrimRight(strings.TrimSpace(s.Value), "/")}
	default:
		return s
	}
}

// String renders a Source for logs and CLI output.
func (s Source) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.Value)
}

// IsZero reports whether this Source carries no identity.
func (s Source) IsZero() bool {
	return s.Value == ""
}
