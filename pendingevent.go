package opq

import "sync"

// pendingGroup is a WaitGroup that additionally supports registering
// callbacks to run once the count reaches zero, including callbacks
// registered after it has already drained (which run immediately, on
// the caller's goroutine). It backs both the Observer Fabric's
// per-dispatch fan-out (dispatchObservers returns one, so callers can
// dispatchNotify a follow-up once every observer callback has
// returned) and PendingEvent, the public handle Produce's before
// parameter hangs happens-before guarantees off of.
//
// Grounded on go-sup's completion-group idiom generalized with a
// notify list; see DESIGN.md.
type pendingGroup struct {
	mu      sync.Mutex
	count   int
	drained bool
	waiters []func()
}

// newPendingGroup returns a pendingGroup pre-loaded with n holds. A
// group created with n == 0 starts already drained.
func newPendingGroup(n int) *pendingGroup {
	g := &pendingGroup{count: n}
	if n == 0 {
		g.drained = true
	}
	return g
}

// hold adds one outstanding unit of work. It must not be called after
// the group has drained; hold itself enforces this via debugAssert,
// which also covers PendingEvent.Hold since that forwards here.
func (g *pendingGroup) hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.drained {
		debugAssert("pendingGroup.hold called after the group already drained")
		return
	}
	g.count++
}

// release removes one outstanding unit of work, running (and clearing)
// every registered waiter once the count reaches zero.
func (g *pendingGroup) release() {
	g.mu.Lock()
	if g.drained {
		g.mu.Unlock()
		debugAssert("pendingGroup.release called more times than hold")
		return
	}
	g.count--
	if g.count > 0 {
		g.mu.Unlock()
		return
	}
	g.drained = true
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()
	for _, w := range waiters {
		w()
	}
}

// notify runs fn once the group has drained: immediately, if it
// already has, or as a queued callback otherwise.
func (g *pendingGroup) notify(fn func()) {
	g.mu.Lock()
	if g.drained {
		g.mu.Unlock()
		fn()
		return
	}
	g.waiters = append(g.waiters, fn)
	g.mu.Unlock()
}

// PendingEvent is the public handle passed as Produce's before
// parameter ( §4.7's "Produce establishes a happens-before edge
// between the child's enqueue and this event firing"). Hold it open
// with Hold, and close it with Release once the thing it represents
// (typically another Task's completion) has actually happened; the
// event counts as delivered (its group drains and runs any waiters
// registered on it) only once every hold placed on it has been
// released.
type PendingEvent struct {
	group *pendingGroup
}

func newPendingEvent(g *pendingGroup) PendingEvent {
	return PendingEvent{group: g}
}

// Hold registers one more unit of outstanding work against the event.
func (p PendingEvent) Hold() {
	if p.group == nil {
		return
	}
	p.group.hold()
}

// Release marks one unit of outstanding work against the event as
// complete.
func (p PendingEvent) Release() {
	if p.group == nil {
		return
	}
	p.group.release()
}
