// Package dedup implements the DeduplicationRegistry: an in-memory
// idempotency-key -> job-id map with CAS-like replace semantics, grounded on
// the teacher's priority-queue job manager's in-memory maps guarded by a
// single mutex (internal/services/jobmanager/queue.go in the reference
// repo this module started from).
package dedup

import (
	"sync"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
)

// errEmptyKey is the error type of ErrEmptyKey.
type errEmptyKey string

func (e errEmptyKey) Error() string { return string(e) }

// ErrEmptyKey is returned by Register when called with an empty key; a null
// key to LookupInFlight simply returns "" (spec §4.2).
const ErrEmptyKey = errEmptyKey("dedup: key must be a non-empty string to register")

// Registry is the in-memory DeduplicationRegistry implementation.
type Registry struct {
	mu      sync.RWMutex
	keyToID map[string]string
	idToKey map[string]string
}

var _ interfaces.DeduplicationRegistry = (*Registry)(nil)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		keyToID: make(map[string]string),
		idToKey: make(map[string]string),
	}
}

// Register associates jobID with key, replacing any existing entry for key
// (last-writer-wins). The displaced job-id, if any, is removed from idToKey,
// so a later Unregister for it is a no-op.
func (r *Registry) Register(jobID, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.keyToID[key]; ok && prevID != jobID {
		delete(r.idToKey, prevID)
	}
	r.keyToID[key] = jobID
	r.idToKey[jobID] = key
	return nil
}

// LookupInFlight returns the job-id registered for key, or "" if key is
// empty or has no in-flight job.
func (r *Registry) LookupInFlight(key string) string {
	if key == "" {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keyToID[key]
}

// Unregister removes whichever entry maps to jobID, if any.
func (r *Registry) Unregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.idToKey[jobID]
	if !ok {
		return
	}
	delete(r.idToKey, jobID)
	// Only remove the key->id mapping if it still points at this job; a
	// later Register call for the same key may have already displaced it.
	if r.keyToID[key] == jobID {
		delete(r.keyToID, key)
	}
}

// Count returns the number of in-flight idempotency keys currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keyToID)
}
