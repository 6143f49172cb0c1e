package opq

// Dependency is anything a Task can wait on before it is considered
// ready to run: at minimum, another Task (via its Done channel), but
// the interface is kept narrow so a host queue can hand a Task an
// arbitrary readiness signal (a timer, an external event) without
// wrapping it in a throwaway Task.
type Dependency interface {
	Done() <-chan struct{}
}

// Queue is the host a Task is enqueued on: whatever calls WillEnqueue,
// tracks readiness, and eventually calls Task.Start. opqueue.Queue is
// this package's concrete implementation; Task itself only ever talks
// to this interface, split out (grounded on go-sup/supervision.go's
// Supervisor/SupervisedTask interface split, see DESIGN.md) so tests
// can substitute a minimal fake without pulling in a whole scheduler.
type Queue interface {
	// AddTask enrolls child (calling its WillEnqueue) and returns a
	// Future that resolves when child finishes.
	AddTask(child *Task) Future

	// UnderlyingEventQueue is the EventQueue a Task's execute should
	// actually run on — typically the Queue's own worker pool's queue,
	// not the Task's private serial EventQueue ( §4.7 step 5,
	// "the Task's EventQueue serializes callbacks; execute itself runs
	// wherever the host queue decides").
	UnderlyingEventQueue() *EventQueue
}
