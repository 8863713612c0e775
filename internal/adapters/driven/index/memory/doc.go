// Package memory provides pure-Go, in-process implementations of the
// VectorAdapter and KeywordAdapter ports: brute-force cosine similarity
// over stored embeddings, and BM25 scoring over a simple inverted
// index. They serve tests and CGO-free builds; the cgo/hnsw and
// cgo/xapian bindings are the production-scale backends.
package memory
