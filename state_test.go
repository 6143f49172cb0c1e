package opq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineFullLifecycle(t *testing.T) {
	sm := &stateMachine{}
	for _, target := range []TaskState{
		TaskState_WillEnqueue,
		TaskState_Pending,
		TaskState_Started,
		TaskState_Executing,
		TaskState_Finishing,
		TaskState_Finished,
	} {
		require.Equal(t, transitionAdvanced, sm.tryAdvance(target), "advancing to %s", target)
	}
	assert.Equal(t, TaskState_Finished, sm.get())
}

func TestStateMachineStartedToFinishingShortcut(t *testing.T) {
	sm := &stateMachine{state: TaskState_Started}
	assert.Equal(t, transitionAdvanced, sm.tryAdvance(TaskState_Finishing))
	assert.Equal(t, TaskState_Finishing, sm.get())
}

func TestStateMachineAlreadyPastIsANoOp(t *testing.T) {
	sm := &stateMachine{state: TaskState_Executing}
	assert.Equal(t, transitionAlreadyPast, sm.tryAdvance(TaskState_Started))
	assert.Equal(t, transitionAlreadyPast, sm.tryAdvance(TaskState_Executing))
	assert.Equal(t, TaskState_Executing, sm.get())
}

func TestStateMachineIllegalTransitionPanicsInDebugPosture(t *testing.T) {
	old := PanicOnIllegalTransition
	PanicOnIllegalTransition = true
	defer func() { PanicOnIllegalTransition = old }()

	sm := &stateMachine{state: TaskState_Initialized}
	assert.Panics(t, func() {
		sm.tryAdvance(TaskState_Executing)
	})
}

func TestStateMachineIllegalTransitionLogsInReleasePosture(t *testing.T) {
	old := PanicOnIllegalTransition
	PanicOnIllegalTransition = false
	defer func() { PanicOnIllegalTransition = old }()

	sm := &stateMachine{state: TaskState_Initialized}
	assert.NotPanics(t, func() {
		got := sm.tryAdvance(TaskState_Executing)
		assert.Equal(t, transitionIllegal, got)
	})
	assert.Equal(t, TaskState_Initialized, sm.get())
}
