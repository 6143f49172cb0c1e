package opqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaycore/opq"
)

// Queue is a concrete opq.Queue: it admits Tasks, drives them through
// enrollment and readiness, bounds how many may run their Body
// concurrently, and tracks everything currently in flight so it can be
// cancelled in bulk.
//
// Grounded on go-sup/engineStream.go's superviseStream (an open-ended,
// repeatedly-submitted-to task runner, as opposed to
// engineForkJoin.go's fixed-batch shape) and its phaseFn-driven
// admission state machine (see phase.go); see DESIGN.md.
type Queue struct {
	name          string
	maxConcurrent int
	registry      *opq.ExclusivityRegistry
	logger        zerolog.Logger

	mu    sync.Mutex
	phase Phase
	tasks map[uuid.UUID]*opq.Task
	wg    sync.WaitGroup

	sem          chan struct{}
	workerQueues []*opq.EventQueue
	rrCounter    uint64
}

// NewQueue constructs a Queue ready to accept Tasks via AddTask.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		name:          "opqueue",
		maxConcurrent: 4,
		registry:      opq.DefaultExclusivityRegistry,
		logger:        opq.DefaultLogger(),
		tasks:         make(map[uuid.UUID]*opq.Task),
		phase:         Phase_open,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.sem = make(chan struct{}, q.maxConcurrent)
	q.workerQueues = make([]*opq.EventQueue, q.maxConcurrent)
	for i := range q.workerQueues {
		q.workerQueues[i] = opq.NewEventQueue(fmt.Sprintf("%s-worker-%d", q.name, i))
	}
	return q
}

// UnderlyingEventQueue satisfies opq.Queue: it hands each Task's
// runExecute one of a fixed pool of worker EventQueues, round-robin,
// so at most len(workerQueues) Task bodies are ever mid-Execute on this
// Queue's own EventQueues at once (independent of, and in addition to,
// the semaphore-based admission bound enforced in AddTask).
func (q *Queue) UnderlyingEventQueue() *opq.EventQueue {
	idx := atomic.AddUint64(&q.rrCounter, 1)
	return q.workerQueues[idx%uint64(len(q.workerQueues))]
}

// AddTask enrolls child on this Queue: WillEnqueue, Pending, Condition
// evaluation and exclusivity acquisition all happen via child.Enqueue;
// once child reports ready, AddTask waits for a free concurrency slot
// (WithMaxConcurrentTasks) before calling child.Start(). A Queue no
// longer Phase_open rejects new Tasks by cancelling them immediately
// with an error naming the Queue.
func (q *Queue) AddTask(child *opq.Task) opq.Future {
	q.mu.Lock()
	if q.phase != Phase_open {
		q.mu.Unlock()
		q.logger.Warn().Str("task", child.Name()).Msg("rejecting task: queue not open")
		child.Cancel(fmt.Errorf("opqueue: %s rejected task %q: queue not open", q.name, child.Name()))
		// Still drive child through Enqueue/Start so the cancellation
		// actually reaches Finished — otherwise the Future returned
		// below never resolves.
		child.Enqueue(q, func() { child.Start() })
		return child.Future()
	}
	q.tasks[child.ID()] = child
	q.wg.Add(1)
	registry := q.registry
	q.mu.Unlock()

	child.SetLogger(q.logger)

	if registry != nil && registry != opq.DefaultExclusivityRegistry {
		child.SetExclusivityRegistry(registry)
	}

	go func() {
		<-child.Done()
		q.mu.Lock()
		delete(q.tasks, child.ID())
		q.mu.Unlock()
		q.wg.Done()
	}()

	child.Enqueue(q, func() {
		go func() {
			q.sem <- struct{}{}
			child.Start()
			go func() {
				<-child.Done()
				<-q.sem
			}()
		}()
	})

	return child.Future()
}

// AddTasks is a bulk-submission convenience, generalized from
// go-sup/taskFactories.go's TasksFromMap (its one factory with a real
// body — see DESIGN.md).
func (q *Queue) AddTasks(children ...*opq.Task) []opq.Future {
	futures := make([]opq.Future, len(children))
	for i, c := range children {
		futures[i] = q.AddTask(c)
	}
	return futures
}

// CancelAllTasks cancels every Task currently tracked by this Queue.
// Grounded on go-sup/supervision.go's QuitAggressively and
// engineForkJoin.go's cancel-siblings-on-error behavior; see DESIGN.md.
func (q *Queue) CancelAllTasks() {
	q.mu.Lock()
	tasks := make([]*opq.Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		tasks = append(tasks, t)
	}
	q.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// Close moves the Queue to Phase_draining (rejecting new Tasks) and
// blocks until every currently-tracked Task has finished.
func (q *Queue) Close() {
	q.mu.Lock()
	q.phase = Phase_draining
	q.mu.Unlock()
	q.wg.Wait()
	q.mu.Lock()
	q.phase = Phase_closed
	q.mu.Unlock()
}

// Len reports how many Tasks are currently tracked (admitted but not
// yet Finished).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
