package opq

import "sync"

// ExclusivityRegistry is a process-wide (or, if you construct your own,
// scoped-to-whatever-you-like) map of category name to a FIFO chain of
// waiters. Tasks that share a MutuallyExclusiveCondition category never
// execute concurrently: the first to request a category runs
// immediately, and every later requester waits until every earlier one
// has released.
//
// DESIGN NOTES call out that a single implicit global
// registry is a mistake worth avoiding; this type is constructed
// explicitly (NewExclusivityRegistry) so a Queue can own its own, or
// several Queues can share one via DefaultExclusivityRegistry. See
// DESIGN.md.
type ExclusivityRegistry struct {
	mu     sync.Mutex
	chains map[string][]*ExclusivityLock
}

// NewExclusivityRegistry returns an empty registry.
func NewExclusivityRegistry() *ExclusivityRegistry {
	return &ExclusivityRegistry{chains: make(map[string][]*ExclusivityLock)}
}

// DefaultExclusivityRegistry is used by any Task/Queue that doesn't
// have one explicitly configured.
var DefaultExclusivityRegistry = NewExclusivityRegistry()

// ExclusivityLock is the opaque handle returned by RequestLock. Pass it
// back to Release, exactly once, when the Task is done running (or is
// abandoning the request before ever having been granted it).
type ExclusivityLock struct {
	categories []string
	completion func(*ExclusivityLock)
	granted    bool
}

// RequestLock asks for exclusive access to every one of categories.
// completion is invoked with the lock handle (on whatever goroutine
// happens to release the last blocking predecessor) once the lock is
// granted across all of them; if categories is empty, completion runs
// synchronously, inline, before RequestLock returns. The callback
// receives the handle explicitly, rather than closing over RequestLock's
// return value, since an immediate grant calls back before RequestLock
// has anything to return.
func (r *ExclusivityRegistry) RequestLock(categories []string, completion func(*ExclusivityLock)) *ExclusivityLock {
	lock := &ExclusivityLock{categories: categories, completion: completion}
	if len(categories) == 0 {
		lock.granted = true
		completion(lock)
		return lock
	}

	r.mu.Lock()
	remaining := 0
	for _, cat := range categories {
		chain := r.chains[cat]
		chain = append(chain, lock)
		r.chains[cat] = chain
		if len(chain) > 1 {
			remaining++
		}
	}
	if remaining == 0 {
		lock.granted = true
	}
	r.mu.Unlock()

	if lock.granted {
		completion(lock)
	}
	return lock
}

// Release removes lock from every category chain it holds a place in,
// promoting and granting the next waiter in any chain where lock was
// at the head. Safe to call whether or not lock was ever actually
// granted (an abandoned, still-queued request is simply dequeued).
func (r *ExclusivityRegistry) Release(lock *ExclusivityLock) {
	if lock == nil || len(lock.categories) == 0 {
		return
	}

	var toNotify []*ExclusivityLock

	r.mu.Lock()
	for _, cat := range lock.categories {
		chain := r.chains[cat]
		idx := -1
		for i, w := range chain {
			if w == lock {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		wasHead := idx == 0
		chain = append(chain[:idx], chain[idx+1:]...)
		if len(chain) == 0 {
			delete(r.chains, cat)
		} else {
			r.chains[cat] = chain
		}
		if wasHead && len(chain) > 0 {
			toNotify = append(toNotify, chain[0])
		}
	}
	r.mu.Unlock()

	for _, w := range dedupeReadyLocked(r, toNotify) {
		w.completion(w)
	}
}

// dedupeReadyLocked filters candidates down to those now at the head of
// every one of their requested categories — a waiter blocking on two
// categories only becomes ready once both of its predecessors have
// released, so being promoted to head of one chain isn't sufficient on
// its own. It also marks each surviving candidate granted before
// releasing r.mu, since that's the only lock guarding the field: two
// Release calls promoting the same two-category waiter from different
// chains at once must not both decide it's ready.
func dedupeReadyLocked(r *ExclusivityRegistry, candidates []*ExclusivityLock) []*ExclusivityLock {
	seen := make(map[*ExclusivityLock]bool)
	var ready []*ExclusivityLock
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range candidates {
		if seen[c] || c.granted {
			continue
		}
		seen[c] = true
		isReady := true
		for _, cat := range c.categories {
			chain := r.chains[cat]
			if len(chain) == 0 || chain[0] != c {
				isReady = false
				break
			}
		}
		if isReady {
			c.granted = true
			ready = append(ready, c)
		}
	}
	return ready
}
