package device

import (
	"sync"
	"time"
)

// TimeoutHandler is called once when its entry expires.
type TimeoutHandler func()

type timeoutEntry struct {
	deadline time.Time
	callback TimeoutHandler
}

// timeoutRegistry holds at most one deadline per tag. Expired entries are removed
// and fired by sweep, one per call, in no particular order.
type timeoutRegistry struct {
	mu      sync.Mutex
	entries map[Tag]timeoutEntry
	timeout time.Duration
	now     func() time.Time
}

func newTimeoutRegistry(timeout time.Duration) *timeoutRegistry {
	return &timeoutRegistry{
		entries: make(map[Tag]timeoutEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

// register inserts or replaces the entry for tag.
func (r *timeoutRegistry) register(tag Tag, callback TimeoutHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tag] = timeoutEntry{
		deadline: r.now().Add(r.timeout),
		callback: callback,
	}
}

func (r *timeoutRegistry) update(tag Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[tag]; ok {
		e.deadline = r.now().Add(r.timeout)
		r.entries[tag] = e
	}
}

func (r *timeoutRegistry) cancel(tag Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tag)
}

func (r *timeoutRegistry) has(tag Tag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[tag]
	return ok
}

func (r *timeoutRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *timeoutRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

// sweep fires at most one expired entry and reports whether it did.
// The callback runs after the lock is released so it may re-register itself.
func (r *timeoutRegistry) sweep() bool {
	var callback TimeoutHandler

	r.mu.Lock()
	now := r.now()
	for tag, e := range r.entries {
		if now.After(e.deadline) {
			callback = e.callback
			delete(r.entries, tag)
			break
		}
	}
	r.mu.Unlock()

	if callback == nil {
		return false
	}
	callback()
	return true
}
