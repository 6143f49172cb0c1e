package opq

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Body is the work a Task performs. Implementations receive a context
// that is cancelled the moment the Task is cancelled, and should return
// promptly once it is.
//
// Grounded on go-sup/task.go's Task/TaskFunc split; see DESIGN.md.
type Body interface {
	Execute(ctx context.Context, t *Task) error
}

// BodyFunc adapts a plain function to Body.
type BodyFunc func(ctx context.Context, t *Task) error

func (f BodyFunc) Execute(ctx context.Context, t *Task) error { return f(ctx, t) }

// NamedBody is the optional interface a Body can implement to give its
// Task a default name, consulted by NewTask when the caller doesn't
// supply one explicitly. Mirrors go-sup's NamedTask "upgrade" pattern.
type NamedBody interface {
	TaskName() string
}

// WillFinishHook, DidFinishHook, and DidCancelHook are optional
// interfaces a Body can implement to receive the same notifications an
// Observer would, without the caller needing to attach one explicitly.
type WillFinishHook interface {
	WillFinish(t *Task, errs []error)
}

type DidFinishHook interface {
	DidFinish(t *Task, errs []error)
}

type DidCancelHook interface {
	DidCancel(t *Task, errs []error)
}

// FinishSource distinguishes why a Task is finishing. It travels with
// FinishInfo through the internal finish path only; it is not passed
// to DidFinishHook or Observer.DidFinish.
type FinishSource int

const (
	FinishedNormally FinishSource = iota
	FinishedFromCancellation
)

// FinishInfo is passed internally through the finish path; nothing
// exported constructs one directly.
type FinishInfo struct {
	Source FinishSource
	Errors []error
}

// Task is the structured-concurrency unit of work: a seven-state
// lifecycle, a private serial EventQueue
// serializing every callback it fires, optional Dependencies and
// Conditions gating readiness, optional Observers, and cooperative
// cancellation via context.
//
// Grounded on go-sup/task.go and go-sup/taskInternals.go's field
// layout, generalized from go-sup's simpler run/done model to the
// fuller seven-state machine; identity via uuid.UUID is grounded on
// other_examples/ent0n29-samantha__manager.go and
// other_examples/zkoranges-go-claw. See DESIGN.md.
type Task struct {
	id   uuid.UUID
	name string
	body Body

	mu    sync.Mutex
	sm    stateMachine
	queue Queue

	dependencies []Dependency
	conditions   []Condition
	observers    []*Observer

	evaluator *conditionEvaluator

	errs errorList

	ready                  bool
	isCancelled            bool
	finishedHandlingCancel bool
	pendingAutomaticFinish *FinishInfo
	pendingFinish          *FinishInfo
	isHandlingFinish       bool

	exclusivityRegistry *ExclusivityRegistry
	exclusivityLock     *ExclusivityLock

	cancelFunc context.CancelFunc
	ctx        context.Context

	eventQueue *EventQueue
	priority   int32

	logger *zerolog.Logger

	future  *taskFuture
	resolve func(err error)
}

// NewTask constructs a Task around body, not yet enqueued anywhere
// (state Initialized). If body implements NamedBody, its TaskName is
// used as the Task's name.
func NewTask(body Body) *Task {
	name := "unnamed-task"
	if nb, ok := body.(NamedBody); ok {
		name = nb.TaskName()
	}
	t := &Task{
		id:                  uuid.New(),
		name:                name,
		body:                body,
		exclusivityRegistry: DefaultExclusivityRegistry,
	}
	t.eventQueue = newEventQueue(name, 0)
	t.future, t.resolve = newTaskFuture()
	t.ctx, t.cancelFunc = context.WithCancel(withTaskContext(context.Background(), t))
	return t
}

// TaskOfFunc is a convenience constructor for a Task backed by a plain
// function body.
func TaskOfFunc(name string, fn func(ctx context.Context, t *Task) error) *Task {
	t := NewTask(BodyFunc(fn))
	t.name = name
	t.eventQueue.name = name
	t.ctx, t.cancelFunc = context.WithCancel(withTaskContext(context.Background(), t))
	return t
}

func (t *Task) ID() uuid.UUID { return t.id }
func (t *Task) Name() string  { return t.name }

// State returns the Task's current lifecycle stage. Safe to call from
// any goroutine at any time.
func (t *Task) State() TaskState { return t.sm.get() }

func (t *Task) IsExecuting() bool { return t.State() == TaskState_Executing }
func (t *Task) IsFinished() bool  { return t.State() == TaskState_Finished }

// IsReady reports whether every Dependency has finished and every
// Condition, if any, has resolved (successfully or not) — the point at
// which a host Queue may call Start.
func (t *Task) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *Task) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCancelled
}

// Errors returns a defensive copy of every error accumulated so far
// (from Cancel calls, failed Conditions, or the Body itself).
func (t *Task) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errs.slice()
}

// Done satisfies Dependency: other Tasks (or a host Queue) can wait on
// this Task finishing without going through the Future/Observer APIs.
func (t *Task) Done() <-chan struct{} { return t.future.Done() }

// Future returns this Task's Future, resolved once it reaches Finished.
func (t *Task) Future() Future { return t.future }

// EventQueue returns this Task's private serial EventQueue. Exposed
// primarily so an Observer can pin its own callback affinity to it via
// Observer.Queue, or a host Queue can synchronize execute against it.
func (t *Task) EventQueue() *EventQueue { return t.eventQueue }

// SetPriority sets the QoS hint later surfaced via
// t.EventQueue().Priority(). Legal at any point before Started.
func (t *Task) SetPriority(p int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sm.get() >= TaskState_Started {
		debugAssert("SetPriority called at or after Started")
		return
	}
	t.priority = p
	t.eventQueue.priority = p
}

// SetExclusivityRegistry overrides the registry this Task's
// MutualExclusivityConditions acquire categories against. Must be
// called before the Task is enqueued.
func (t *Task) SetExclusivityRegistry(r *ExclusivityRegistry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sm.get() >= TaskState_WillEnqueue {
		debugAssert("SetExclusivityRegistry called at or after WillEnqueue")
		return
	}
	t.exclusivityRegistry = r
}

// AddDependency registers dep as something this Task will wait on
// before becoming ready. Legal any time before Started. The set waited
// on is snapshotted once, when the Task enters Pending (after any
// Condition Dependencies are mirrored in); a dep added after that is
// recorded and reported by Dependencies, but the Task does not wait
// for it.
func (t *Task) AddDependency(dep Dependency) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sm.get() >= TaskState_Started {
		debugAssert("AddDependency called at or after Started")
		return
	}
	t.dependencies = append(t.dependencies, dep)
}

// RemoveDependency undoes AddDependency. Legal under the same window.
func (t *Task) RemoveDependency(dep Dependency) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sm.get() >= TaskState_Started {
		debugAssert("RemoveDependency called at or after Started")
		return
	}
	for i, d := range t.dependencies {
		if d == dep {
			t.dependencies = append(t.dependencies[:i], t.dependencies[i+1:]...)
			return
		}
	}
}

// AddCondition registers c to gate this Task's readiness. Legal only
// before WillEnqueue (conditions are captured once, at
// enqueue time, since they may bring their own Dependencies that must
// also be mirrored in before evaluation starts).
func (t *Task) AddCondition(c Condition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sm.get() >= TaskState_WillEnqueue {
		debugAssert("AddCondition called at or after WillEnqueue")
		return
	}
	t.conditions = append(t.conditions, c)
}

// AddObserver registers o to receive this Task's lifecycle
// notifications. Legal only before Pending. DidAttach, like every other
// Observer callback, is dispatched through this Task's own EventQueue
// (and, for an Observer with its own Queue, run there) rather than on
// the caller's goroutine.
func (t *Task) AddObserver(o *Observer) {
	t.mu.Lock()
	if t.sm.get() >= TaskState_Pending {
		t.mu.Unlock()
		debugAssert("AddObserver called at or after Pending")
		return
	}
	t.observers = append(t.observers, o)
	t.mu.Unlock()

	if o.DidAttach != nil {
		t.eventQueue.dispatch(func() {
			if o.Queue != nil && o.Queue != t.eventQueue {
				t.eventQueue.dispatchSynchronizedWith(o.Queue, func() { o.DidAttach(t) })
				return
			}
			o.DidAttach(t)
		})
	}
}

func (t *Task) observersSnapshot() []*Observer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Observer, len(t.observers))
	copy(out, t.observers)
	return out
}

// Dependencies returns a defensive copy of every Dependency registered
// via AddDependency, for Condition implementations (like
// NoFailedDependenciesCondition, in opconditions) that need to inspect
// them.
func (t *Task) Dependencies() []Dependency {
	return t.dependenciesSnapshot()
}

func (t *Task) dependenciesSnapshot() []Dependency {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Dependency, len(t.dependencies))
	copy(out, t.dependencies)
	return out
}
