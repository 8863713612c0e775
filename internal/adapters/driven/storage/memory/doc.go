// Package memory provides in-memory implementations of the storage
// driven ports: FingerprintStore, ArtifactCache, Registry, JobStore,
// and IntentLog. Nothing is persisted; state lives in mutex-guarded
// maps and dies with the process. They back tests and DOCINDEX_EPHEMERAL
// runs where durability doesn't matter.
package memory
