package embedding

import "sync"

// endpointRing tracks which endpoint of an ordered preference list is
// current. On failure the caller advances to the next endpoint; one full
// lap over the list means every region has been tried for the call at hand.
//
// The cursor is the only shared mutable state in this package and is
// guarded by its own mutex.
type endpointRing struct {
	mu        sync.Mutex
	endpoints []string
	current   int
}

func newEndpointRing(endpoints []string) *endpointRing {
	return &endpointRing{endpoints: append([]string(nil), endpoints...)}
}

// Current returns the endpoint the next call should use.
func (r *endpointRing) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[r.current]
}

// Advance moves the cursor to the next endpoint in preference order,
// wrapping at the end, and returns it. Subsequent calls start from the new
// cursor, so a region that has gone bad is not retried first.
func (r *endpointRing) Advance() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = (r.current + 1) % len(r.endpoints)
	return r.endpoints[r.current]
}

// Len returns the number of configured endpoints, which is also the maximum
// number of attempts for a single call.
func (r *endpointRing) Len() int {
	return len(r.endpoints)
}
