package opq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFinishWithInfoBeforeStartOnCancelledTaskStashes drives
// finishWithInfo directly and synchronously (bypassing the EventQueue
// dispatch Task.Finish normally goes through) so the panic path below
// can be asserted on the calling goroutine.
func TestFinishWithInfoBeforeStartOnCancelledTaskStashes(t *testing.T) {
	task := NewTask(BodyFunc(func(context.Context, *Task) error { return nil }))
	task.isCancelled = true

	task.finishWithInfo(FinishInfo{Source: FinishedNormally, Errors: nil})

	require.NotNil(t, task.pendingFinish)
	assert.Equal(t, TaskState_Initialized, task.State())
	assert.False(t, task.isHandlingFinish)
}

func TestFinishWithInfoBeforeStartWithoutCancellationPanics(t *testing.T) {
	old := PanicOnIllegalTransition
	PanicOnIllegalTransition = true
	defer func() { PanicOnIllegalTransition = old }()

	task := NewTask(BodyFunc(func(context.Context, *Task) error { return nil }))

	assert.Panics(t, func() {
		task.finishWithInfo(FinishInfo{Source: FinishedNormally})
	})
	assert.Nil(t, task.pendingFinish)
}

func TestFinishWithInfoBeforeStartWithoutCancellationLogsInReleasePosture(t *testing.T) {
	old := PanicOnIllegalTransition
	PanicOnIllegalTransition = false
	defer func() { PanicOnIllegalTransition = old }()

	task := NewTask(BodyFunc(func(context.Context, *Task) error { return nil }))

	assert.NotPanics(t, func() {
		task.finishWithInfo(FinishInfo{Source: FinishedNormally})
	})
	assert.Equal(t, TaskState_Initialized, task.State())
}
