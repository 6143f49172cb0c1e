package opq

import (
	"sync"
	"sync/atomic"
)

// EventQueue is a serial FIFO executor: every block given to dispatch
// runs after every block dispatched before it, on a single worker
// goroutine, never concurrently with another block from the same
// EventQueue. It exists so a Task's user-visible callbacks (WillExecute,
// DidExecute, WillFinish, DidFinish, DidCancel, and every observer
// invocation) stay totally ordered even though the calls that trigger
// them (Cancel, Finish, a host queue's start) can arrive from any
// goroutine, at any time. See DESIGN.md for how this adapts go-sup's
// report-channel-draining idiom to an unbounded, non-blocking backlog.
type EventQueue struct {
	name     string
	priority int32

	mu       sync.Mutex
	pending  []func()
	draining bool

	workerGoroutine int64
}

func newEventQueue(name string, priority int32) *EventQueue {
	return &EventQueue{name: name, priority: priority}
}

// NewEventQueue returns a standalone EventQueue, for a host Queue to
// use as one of its worker slots (see Queue.UnderlyingEventQueue).
// Every Task already gets its own private EventQueue automatically;
// this constructor is for hosts, not for Tasks.
func NewEventQueue(name string) *EventQueue {
	return newEventQueue(name, 0)
}

// Priority is the QoS/priority hint propagated from the owning Task.
// It does not reach into Go's own goroutine scheduler, and nothing in
// this module (opqueue.Queue included) reads it to make scheduling
// decisions; it is stored and reported only.
func (eq *EventQueue) Priority() int32 { return atomic.LoadInt32(&eq.priority) }

// dispatch appends block to the queue and, if no worker is currently
// draining it, spawns one. It never blocks the caller.
func (eq *EventQueue) dispatch(block func()) {
	eq.mu.Lock()
	eq.pending = append(eq.pending, block)
	if eq.draining {
		eq.mu.Unlock()
		return
	}
	eq.draining = true
	eq.mu.Unlock()
	go eq.drain()
}

func (eq *EventQueue) drain() {
	atomic.StoreInt64(&eq.workerGoroutine, goroutineID())
	defer atomic.StoreInt64(&eq.workerGoroutine, 0)
	for {
		eq.mu.Lock()
		if len(eq.pending) == 0 {
			eq.draining = false
			eq.mu.Unlock()
			return
		}
		block := eq.pending[0]
		eq.pending = eq.pending[1:]
		eq.mu.Unlock()
		block()
	}
}

// assertOnEventQueue panics (in the debug posture) unless the calling
// goroutine is the one currently draining eq. Reentrant dispatch (code
// running on eq calling eq.dispatch again) is fine and expected; this
// only guards operations, like dispatchSynchronizedWith, that assume
// they're already inside eq's own serial execution.
func assertOnEventQueue(eq *EventQueue) {
	if atomic.LoadInt64(&eq.workerGoroutine) != goroutineID() {
		debugAssert("called from outside EventQueue %q's own worker goroutine", eq.name)
	}
}

// runSynchronizedWith runs block on other and blocks the caller until it
// returns. It carries no assertion about the caller's own goroutine,
// unlike dispatchSynchronizedWith below: it exists for callers that are
// not running on any EventQueue's worker but still hold some other
// guarantee that nothing will concurrently race them. Besides
// dispatchSynchronizedWith itself, Task.Produce (via
// dispatchObserversInline) is the one caller, since it runs while its
// own EventQueue's worker is parked specifically to make room for it.
func runSynchronizedWith(other *EventQueue, block func()) {
	done := make(chan struct{})
	other.dispatch(func() {
		defer close(done)
		block()
	})
	<-done
}

// dispatchSynchronizedWith must be called from a block already running
// on eq. It runs block on other (via other.dispatch), blocking eq's
// current worker until that block returns — so nothing else can begin
// running on eq until block has completed on other. This is how a
// Task's execute is run on a host-supplied underlying queue while the
// Task's own Event Queue stays serialized around it, and how the
// Observer Fabric hops to an observer's pinned queue and back.
func (eq *EventQueue) dispatchSynchronizedWith(other *EventQueue, block func()) {
	assertOnEventQueue(eq)
	runSynchronizedWith(other, block)
}

// dispatchNotify runs block on eq once group has drained — immediately
// (still respecting eq's FIFO ordering, since we're presumably calling
// this from within a block already running on eq) if group is already
// drained, or as a follow-up once its last outstanding hold releases.
func (eq *EventQueue) dispatchNotify(group *pendingGroup, block func()) {
	group.notify(func() {
		eq.dispatch(block)
	})
}
