package opq_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/opq"
)

// fakeQueue is a minimal opq.Queue used to drive Task through its
// lifecycle without pulling in opqueue, which itself imports this
// package and would create an import cycle in-package.
type fakeQueue struct {
	mu     sync.Mutex
	tasks  []*opq.Task
	worker *opq.EventQueue
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{worker: opq.NewEventQueue("fake-worker")}
}

func (q *fakeQueue) AddTask(t *opq.Task) opq.Future {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	t.Enqueue(q, func() { t.Start() })
	return t.Future()
}

func (q *fakeQueue) UnderlyingEventQueue() *opq.EventQueue {
	return q.worker
}

func waitFinished(t *testing.T, future opq.Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return future.Wait(ctx)
}

func TestTaskHappyPath(t *testing.T) {
	q := newFakeQueue()
	var ran int32
	task := opq.TaskOfFunc("happy", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	future := q.AddTask(task)
	require.NoError(t, waitFinished(t, future))

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.Equal(t, opq.TaskState_Finished, task.State())
	assert.True(t, task.IsFinished())
	assert.Empty(t, task.Errors())
}

func TestTaskCancelBeforeStart(t *testing.T) {
	q := newFakeQueue()
	var executed int32
	task := opq.TaskOfFunc("cancel-before-start", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})

	task.Cancel(errors.New("cancelled before ever being enqueued"))
	future := q.AddTask(task)
	err := waitFinished(t, future)

	require.Error(t, err)
	require.Len(t, task.Errors(), 1, "the cancellation error must be recorded exactly once, not re-appended by the automatic finish")
	assert.Equal(t, int32(0), atomic.LoadInt32(&executed), "body must never run once cancelled pre-start")
	assert.Equal(t, opq.TaskState_Finished, task.State())
	assert.True(t, task.IsCancelled())
}

// staticCondition always returns the same ConditionResult, for tests
// that need to force a specific evaluator outcome.
type staticCondition struct {
	result opq.ConditionResult
}

func (c staticCondition) Evaluate(context.Context, *opq.Task) opq.ConditionResult {
	return c.result
}

func (c staticCondition) Dependencies() []*opq.Task { return nil }

func TestTaskConditionFailureCancelsWithError(t *testing.T) {
	q := newFakeQueue()
	wantErr := errors.New("precondition broke")
	var executed int32
	task := opq.TaskOfFunc("gated", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	task.AddCondition(staticCondition{result: opq.ConditionFailed(wantErr)})

	future := q.AddTask(task)
	err := waitFinished(t, future)

	require.Error(t, err)
	assert.Contains(t, err.Error(), wantErr.Error())
	require.Len(t, task.Errors(), 1, "the condition's error must be recorded exactly once, not re-appended by the automatic finish")
	assert.Equal(t, int32(0), atomic.LoadInt32(&executed))
	assert.True(t, task.IsCancelled())
}

func TestTaskConditionUnsatisfiedCancelsSilently(t *testing.T) {
	q := newFakeQueue()
	var executed int32
	task := opq.TaskOfFunc("gated-silent", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	task.AddCondition(staticCondition{result: opq.ConditionUnsatisfied()})

	future := q.AddTask(task)
	err := waitFinished(t, future)

	require.NoError(t, err, "a silent unsatisfied condition attaches no error")
	assert.Equal(t, int32(0), atomic.LoadInt32(&executed))
	assert.True(t, task.IsCancelled())
}

// exclusiveCondition grants a fixed set of categories without doing
// any other gating, so tests can drive the Exclusivity Registry
// directly without opconditions (which would otherwise be the more
// natural way to write this).
type exclusiveCondition struct {
	categories []string
}

func (c exclusiveCondition) Evaluate(context.Context, *opq.Task) opq.ConditionResult {
	return opq.ConditionSatisfied()
}

func (c exclusiveCondition) Dependencies() []*opq.Task { return nil }

func (c exclusiveCondition) MutuallyExclusiveCategories() []string { return c.categories }

func TestTaskExclusivityOrdersSiblings(t *testing.T) {
	q := newFakeQueue()
	registry := opq.NewExclusivityRegistry()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	makeTask := func(name string) *opq.Task {
		task := opq.TaskOfFunc(name, func(ctx context.Context, task *opq.Task) error {
			record(name + "-start")
			time.Sleep(20 * time.Millisecond)
			record(name + "-end")
			return nil
		})
		task.SetExclusivityRegistry(registry)
		task.AddCondition(exclusiveCondition{categories: []string{"shared"}})
		return task
	}

	a := makeTask("a")
	b := makeTask("b")

	futA := q.AddTask(a)
	futB := q.AddTask(b)

	require.NoError(t, waitFinished(t, futA))
	require.NoError(t, waitFinished(t, futB))

	require.Len(t, order, 4)
	// Whichever task acquires the category first must fully finish
	// (start, then end) before the other one starts.
	assert.Equal(t, order[0][:1], order[1][:1], "first task's start/end must not interleave with the second's")
	assert.NotEqual(t, order[0], order[2])
}

func TestTaskProduceEnqueuesChildAndHonorsPendingEvent(t *testing.T) {
	q := newFakeQueue()

	var childRan int32
	child := opq.TaskOfFunc("child", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&childRan, 1)
		return nil
	})

	pending := opq.NewPendingEvent()
	var childFuture opq.Future
	parent := opq.TaskOfFunc("parent", func(ctx context.Context, task *opq.Task) error {
		f, err := task.Produce(child, &pending)
		childFuture = f
		return err
	})

	future := q.AddTask(parent)
	require.NoError(t, waitFinished(t, future))

	require.NotNil(t, childFuture)
	require.NoError(t, waitFinished(t, childFuture))
	assert.Equal(t, int32(1), atomic.LoadInt32(&childRan))

	// The caller's own hold is still outstanding; releasing it must not
	// panic even though nothing else in this test observes the drain.
	assert.NotPanics(t, pending.Release)
}

func TestTaskProduceWithoutQueueReturnsErrNoQueue(t *testing.T) {
	child := opq.TaskOfFunc("child", func(ctx context.Context, task *opq.Task) error { return nil })
	parent := opq.NewTask(opq.BodyFunc(func(ctx context.Context, task *opq.Task) error { return nil }))

	_, err := parent.Produce(child, nil)
	assert.ErrorIs(t, err, opq.ErrNoQueue)
}

func TestTaskFinishRecordsBodyError(t *testing.T) {
	q := newFakeQueue()
	bodyErr := errors.New("body failed")
	task := opq.TaskOfFunc("erroring", func(ctx context.Context, task *opq.Task) error {
		return bodyErr
	})

	future := q.AddTask(task)
	err := waitFinished(t, future)

	require.Error(t, err)
	assert.Contains(t, err.Error(), bodyErr.Error())
	assert.Contains(t, task.Errors()[0].Error(), bodyErr.Error())
}

func TestTaskObserverFabricFiresInOrder(t *testing.T) {
	q := newFakeQueue()
	var events []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}

	task := opq.TaskOfFunc("observed", func(ctx context.Context, task *opq.Task) error {
		record("execute")
		return nil
	})
	task.AddObserver(&opq.Observer{
		DidAttach:   func(*opq.Task) { record("did-attach") },
		WillExecute: func(*opq.Task) { record("will-execute") },
		DidExecute:  func(*opq.Task) { record("did-execute") },
		WillFinish:  func(*opq.Task, []error) { record("will-finish") },
		DidFinish:   func(*opq.Task, []error) { record("did-finish") },
	})

	future := q.AddTask(task)
	require.NoError(t, waitFinished(t, future))

	assert.Equal(t, []string{"did-attach", "will-execute", "execute", "did-execute", "will-finish", "did-finish"}, events)
}

func TestTaskFinishBeforeStartOnCancelledTaskStashesAndIsConsumedOnStart(t *testing.T) {
	q := newFakeQueue()
	var executed int32
	task := opq.TaskOfFunc("finish-before-start", func(ctx context.Context, task *opq.Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})

	task.Cancel()
	explicitErr := errors.New("finished early with this instead")
	task.Finish(explicitErr)

	future := q.AddTask(task)
	err := waitFinished(t, future)

	require.Error(t, err)
	assert.Contains(t, err.Error(), explicitErr.Error())
	assert.Equal(t, int32(0), atomic.LoadInt32(&executed), "body must never run once cancelled pre-start")
	assert.Equal(t, opq.TaskState_Finished, task.State())
}

