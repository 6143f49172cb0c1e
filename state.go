package opq

import (
	"fmt"
	"sync/atomic"
)

// TaskState is a Task's lifecycle stage. It is monotonically increasing
// with exactly one documented exception: Started may transition
// directly to Finishing, skipping Executing entirely, when cancellation
// is detected after WillExecute observers have fired but before execute
// itself runs. See lifecycle.go's mainPath for where that shortcut is
// taken.
type TaskState int32

const (
	TaskState_Initialized TaskState = iota
	TaskState_WillEnqueue
	TaskState_Pending
	TaskState_Started
	TaskState_Executing
	TaskState_Finishing
	TaskState_Finished
)

func (s TaskState) String() string {
	switch s {
	case TaskState_Initialized:
		return "Initialized"
	case TaskState_WillEnqueue:
		return "WillEnqueue"
	case TaskState_Pending:
		return "Pending"
	case TaskState_Started:
		return "Started"
	case TaskState_Executing:
		return "Executing"
	case TaskState_Finishing:
		return "Finishing"
	case TaskState_Finished:
		return "Finished"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// PanicOnIllegalTransition selects the debug or release posture for
// illegal state transitions (see DESIGN.md): true (the default) aborts
// the process via panic for debug builds; false logs a warning via the
// package logger and rejects the transition instead. Do not flip this
// while Tasks are running; it is meant to be set once, at program
// startup.
var PanicOnIllegalTransition = true

type transitionResult int

const (
	transitionAdvanced transitionResult = iota
	transitionAlreadyPast
	transitionIllegal
)

// legalEdges enumerates every transition a Task may legally make. Any
// edge not present here (other than staying put, or moving backward,
// both handled as "already past") is a programming error.
var legalEdges = map[TaskState]map[TaskState]bool{
	TaskState_Initialized: {TaskState_WillEnqueue: true},
	TaskState_WillEnqueue:  {TaskState_Pending: true},
	TaskState_Pending:      {TaskState_Started: true},
	TaskState_Started:      {TaskState_Executing: true, TaskState_Finishing: true},
	TaskState_Executing:    {TaskState_Finishing: true},
	TaskState_Finishing:    {TaskState_Finished: true},
	TaskState_Finished:     {},
}

// stateMachine is embedded in Task. Every method on it assumes the
// caller already holds the owning Task's mutex, except get, which is a
// lock-free atomic read for callers (like host queues polling State())
// who only want a point-in-time snapshot.
type stateMachine struct {
	state TaskState
}

func (sm *stateMachine) get() TaskState {
	return TaskState(atomic.LoadInt32((*int32)(&sm.state)))
}

// tryAdvance attempts state -> target, enforcing legalEdges. The caller
// must hold the Task mutex. An illegal request triggers debugAssert
// (panic, in the default posture) and returns transitionIllegal so a
// release-posture caller can still decide not to proceed.
func (sm *stateMachine) tryAdvance(target TaskState) transitionResult {
	cur := sm.state
	if cur == target || cur > target {
		return transitionAlreadyPast
	}
	if !legalEdges[cur][target] {
		debugAssert("illegal task state transition: %s -> %s", cur, target)
		return transitionIllegal
	}
	atomic.StoreInt32((*int32)(&sm.state), int32(target))
	return transitionAdvanced
}
