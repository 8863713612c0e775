// Package xapian provides CGO bindings for the Xapian search engine.
// It implements the driven.KeywordAdapter interface.
//
// Build requires:
//   - Xapian development libraries (xapian-core)
//   - Install via: brew install xapian (macOS) or apt install libxapian-dev (Linux)
package xapian
