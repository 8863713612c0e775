// Package docmutex gives the worker pool per-document exclusion: jobs
// targeting the same DocumentID never run concurrently, while jobs on
// different DocumentIDs are free to overlap.
package docmutex

import "sync"

// entry is one document's lock plus a reference count, so the map entry
// can be reclaimed once nobody holds or awaits it.
type entry struct {
	mu       sync.Mutex
	refcount int
}

// Registry hands out a per-key mutex, creating it on first use and
// removing it once the last holder releases it. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock blocks until the caller holds the exclusive lock for key.
// It returns an Unlock function; callers must invoke it exactly once.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refcount++
	r.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		r.mu.Lock()
		e.refcount--
		if e.refcount == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}
}

// TryLock attempts to acquire key's lock without blocking. It reports
// whether the lock was acquired; on success it returns the same Unlock
// contract as Lock.
func (r *Registry) TryLock(key string) (unlock func(), ok bool) {
	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		e = &entry{}
		r.entries[key] = e
	}
	e.refcount++
	r.mu.Unlock()

	if !e.mu.TryLock() {
		r.mu.Lock()
		e.refcount--
		if e.refcount == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, false
	}

	return func() {
		e.mu.Unlock()

		r.mu.Lock()
		e.refcount--
		if e.refcount == 0 {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}, true
}

// Len reports the number of keys currently held or awaited, for tests
// and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
