package call

import "sync"

// AttemptRegistry remembers which telephony calls have already had a forward
// attempt executed. Keyed by call SID rather than session, since the SID may
// be re-resolved mid-call. Process-scoped; entries are evicted when the call
// ends so memory stays bounded.
type AttemptRegistry struct {
	mu        sync.Mutex
	attempted map[string]struct{}
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{attempted: make(map[string]struct{})}
}

func (r *AttemptRegistry) Attempted(callSID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attempted[callSID]
	return ok
}

func (r *AttemptRegistry) MarkAttempted(callSID string) {
	if callSID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempted[callSID] = struct{}{}
}

func (r *AttemptRegistry) Evict(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempted, callSID)
}
