// Package hnsw provides CGO bindings for HNSWlib.
// It implements the driven.VectorAdapter interface.
//
// Build requires:
//   - HNSWlib header (fetched via CMake FetchContent)
//   - C++17 compiler
package hnsw
