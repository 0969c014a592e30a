package sequence

import (
	"sync"
)

// Allocator issues monotonic per-session sequence numbers for ordering
// attempts and events. Ordering is explicit rather than inferred from
// wall-clock timestamps, so concurrent writes in one session cannot tie or
// invert.
type Allocator struct {
	mu      sync.Mutex
	current map[string]int64
}

// NewAllocator creates an empty allocator
func NewAllocator() *Allocator {
	return &Allocator{current: make(map[string]int64)}
}

// Seed sets a session's floor, typically the highest number already
// persisted. A seed below the current value is ignored.
func (a *Allocator) Seed(sessionID string, floor int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if floor > a.current[sessionID] {
		a.current[sessionID] = floor
	}
}

// Next returns the session's next sequence number atomically.
// Thread-safe for concurrent use across multiple goroutines.
func (a *Allocator) Next(sessionID string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current[sessionID]++
	return a.current[sessionID]
}

// Current returns the last issued number for a session without incrementing
func (a *Allocator) Current(sessionID string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current[sessionID]
}
