package executor

import "sync"

// InflightRegistry tracks which asset pairs currently have an execution in
// flight. The critical section is a single flag check, so it rides on
// sync.Map's atomic load-or-store rather than a lock around richer state.
type InflightRegistry struct {
	pairs sync.Map // pair key -> struct{}
}

// NewInflightRegistry creates an empty registry.
func NewInflightRegistry() *InflightRegistry {
	return &InflightRegistry{}
}

// TryAcquire marks the pair in flight. It returns false when an execution
// for the same pair is already running; callers reject immediately instead
// of queueing, since a stale concurrent request is worse than a missed
// cycle.
func (r *InflightRegistry) TryAcquire(pairKey uint64) bool {
	_, loaded := r.pairs.LoadOrStore(pairKey, struct{}{})
	return !loaded
}

// Release clears the in-flight mark for a pair.
func (r *InflightRegistry) Release(pairKey uint64) {
	r.pairs.Delete(pairKey)
}
