package opobservers_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/opq"
	"github.com/relaycore/opq/opobservers"
)

func waitFinished(t *testing.T, future opq.Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return future.Wait(ctx)
}

type fakeQueue struct {
	worker *opq.EventQueue
}

func newFakeQueue() *fakeQueue { return &fakeQueue{worker: opq.NewEventQueue("fake")} }

func (q *fakeQueue) AddTask(t *opq.Task) opq.Future {
	t.Enqueue(q, func() { t.Start() })
	return t.Future()
}

func (q *fakeQueue) UnderlyingEventQueue() *opq.EventQueue { return q.worker }

func TestBlockObserverFiresConfiguredCallbacks(t *testing.T) {
	q := newFakeQueue()

	var willExecuted, didExecuted, didFinished bool
	obs := opobservers.NewBlockObserver(
		opobservers.OnWillExecute(func(*opq.Task) { willExecuted = true }),
		opobservers.OnDidExecute(func(*opq.Task) { didExecuted = true }),
		opobservers.OnDidFinish(func(*opq.Task, []error) { didFinished = true }),
	)

	task := opq.TaskOfFunc("blocked", func(context.Context, *opq.Task) error { return nil })
	task.AddObserver(obs)

	future := q.AddTask(task)
	require.NoError(t, waitFinished(t, future))

	assert.True(t, willExecuted)
	assert.True(t, didExecuted)
	assert.True(t, didFinished)
}

func TestBlockObserverOnQueuePinsAffinity(t *testing.T) {
	eq := opq.NewEventQueue("affinity")
	obs := opobservers.NewBlockObserver(opobservers.OnQueue(eq))
	assert.Same(t, eq, obs.Queue)
}

func TestTimeoutObserverCancelsAfterDeadline(t *testing.T) {
	q := newFakeQueue()

	task := opq.TaskOfFunc("slow", func(ctx context.Context, task *opq.Task) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	task.AddObserver(opobservers.NewTimeoutObserver(10 * time.Millisecond))

	future := q.AddTask(task)
	err := waitFinished(t, future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestTimeoutObserverDoesNotFireIfTaskFinishesFirst(t *testing.T) {
	q := newFakeQueue()

	task := opq.TaskOfFunc("fast", func(context.Context, *opq.Task) error { return nil })
	task.AddObserver(opobservers.NewTimeoutObserver(50 * time.Millisecond))

	future := q.AddTask(task)
	require.NoError(t, waitFinished(t, future))

	// Give the (stopped) timer a chance to misfire if it were going to.
	time.Sleep(70 * time.Millisecond)
	assert.NoError(t, future.Err())
}

func TestLoggingObserverWritesStructuredEvents(t *testing.T) {
	q := newFakeQueue()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	task := opq.TaskOfFunc("logged", func(context.Context, *opq.Task) error {
		return errors.New("something went wrong")
	})
	task.AddObserver(opobservers.NewLoggingObserver(logger))

	future := q.AddTask(task)
	err := waitFinished(t, future)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "will execute")
	assert.Contains(t, out, "did execute")
	assert.Contains(t, out, "did finish")
	assert.Contains(t, out, "something went wrong")
}
