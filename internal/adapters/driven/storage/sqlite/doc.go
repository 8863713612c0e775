// Package sqlite provides a unified SQLite-based implementation of the
// storage driven ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. A single
// database connection backs five interfaces:
//
//   - FingerprintStore: content-identity bookkeeping for the Change Detector
//   - ArtifactCache: cached pipeline-stage outputs keyed by content+options
//   - Registry: document records and their owned chunks
//   - JobStore: the durable priority queue behind the Worker Pool
//   - IntentLog: the Index Manager's Plan/Announce/Execute/Commit trail
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory; each is a single .up.sql file applied once, in
// order, and recorded in schema_migrations.
//
// # Data Location
//
// By default the database is stored at ~/.docindex/data/docindex.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store runs in SQLite's WAL mode,
// which allows concurrent readers alongside a single writer.
package sqlite
