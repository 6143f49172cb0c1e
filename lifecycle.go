package opq

import (
	"github.com/hashicorp/go-multierror"
)

// Enqueue is the public entry point a host Queue's AddTask calls to
// enroll this Task: Initialized -> WillEnqueue -> Pending, Condition
// evaluation, and exclusivity acquisition all happen internally, and
// onReady is invoked once the Task is ready for Start (whatever the
// outcome — see pendingQueueStart).
func (t *Task) Enqueue(q Queue, onReady func()) {
	t.willEnqueue(q)
	t.pendingQueueStart(func() {
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()
		onReady()
	})
}

// Start is the public entry point a host Queue calls, from onReady,
// once it has decided to actually run this Task (respecting whatever
// concurrency limit the host enforces).
func (t *Task) Start() {
	t.startInternal()
}

// willEnqueue is called by a Queue's AddTask before returning: it
// records the owning Queue and advances Initialized -> WillEnqueue,
// closing the window in which AddCondition may still be called.
func (t *Task) willEnqueue(q Queue) {
	t.mu.Lock()
	t.queue = q
	t.sm.tryAdvance(TaskState_WillEnqueue)
	t.mu.Unlock()
}

// pendingQueueStart advances WillEnqueue -> Pending, installs a
// conditionEvaluator if the Task has any Conditions, mirrors each
// Condition's own auxiliary Dependencies onto the same Queue, and
// waits for every Dependency (the Task's own, plus any mirrored ones)
// to finish before evaluating Conditions and, if they all pass,
// acquiring any exclusivity categories they name. readyFn is called
// exactly once, whatever the outcome — a Task that fails its
// conditions still needs to reach Started so it can take the
// Started -> Finishing shortcut and reach Finished like any other.
func (t *Task) pendingQueueStart(readyFn func()) {
	t.mu.Lock()
	if t.sm.tryAdvance(TaskState_Pending) != transitionAdvanced {
		t.mu.Unlock()
		return
	}
	conditions := append([]Condition(nil), t.conditions...)
	q := t.queue
	ctx := t.ctx
	t.mu.Unlock()

	var evaluator *conditionEvaluator
	if len(conditions) > 0 {
		evaluator = newConditionEvaluator(t, conditions)
		t.mu.Lock()
		t.evaluator = evaluator
		t.mu.Unlock()
		if q != nil {
			evaluator.mirrorDependencies(q)
		}
	}

	deps := t.dependenciesSnapshot()
	waitForDeps(deps, func() {
		if evaluator == nil {
			readyFn()
			return
		}
		ok, failures := evaluator.run(ctx)
		if !ok {
			if len(failures) > 0 {
				t.Cancel(newConditionFailure(failures))
			} else {
				t.Cancel()
			}
			readyFn()
			return
		}
		cats := evaluator.exclusivityCategories()
		if len(cats) == 0 {
			readyFn()
			return
		}
		t.acquireExclusivity(cats, readyFn)
	})
}

// waitForDeps calls fn once every Dependency in deps has finished.
// PSOperations-style dependency waiting is normally built on KVO over
// each dependency's own completion flag, which Go has no equivalent
// for, so this is a plain
// fan-in over each Dependency's Done channel instead.
func waitForDeps(deps []Dependency, fn func()) {
	if len(deps) == 0 {
		fn()
		return
	}
	group := newPendingGroup(len(deps))
	for _, d := range deps {
		d := d
		go func() {
			<-d.Done()
			group.release()
		}()
	}
	group.notify(fn)
}

// acquireExclusivity requests every one of categories against this
// Task's ExclusivityRegistry, stashing the resulting handle (so
// finishWithInfo can release it later) and calling onAcquired once
// every category has been granted.
func (t *Task) acquireExclusivity(categories []string, onAcquired func()) {
	t.mu.Lock()
	registry := t.exclusivityRegistry
	t.mu.Unlock()
	if registry == nil {
		registry = DefaultExclusivityRegistry
	}
	registry.RequestLock(categories, func(lock *ExclusivityLock) {
		t.mu.Lock()
		t.exclusivityLock = lock
		t.mu.Unlock()
		onAcquired()
	})
}

// startInternal is invoked by the host Queue once pendingQueueStart's
// readyFn has fired. It advances Pending -> Started and then, as the
// one documented exception to strict monotonic advancement, either
// dispatches mainPath (the normal path, which itself re-checks
// cancellation after WillExecute) or — if the Task was already
// cancelled by the time it got here — stages the automatic finish that
// takes it straight through the Started -> Finishing shortcut instead.
// If Finish was called while the Task was still cancelled-but-not-yet-
// Started, finishWithInfo couldn't legally advance to Finishing from
// here and stashed its FinishInfo in pendingFinish instead; that stash
// is consumed now, taking priority over the generic
// FinishedFromCancellation info this method would otherwise construct.
func (t *Task) startInternal() {
	t.mu.Lock()
	if t.sm.tryAdvance(TaskState_Started) != transitionAdvanced {
		t.mu.Unlock()
		return
	}
	if t.isCancelled {
		// Errors is left empty: whatever errors led to cancellation are
		// already in t.errs (Cancel appended them there directly), and
		// finishWithInfo appends info.Errors on top of t.errs rather than
		// replacing it. FinishInfo.Errors only ever carries errors not
		// yet recorded anywhere else.
		info := FinishInfo{Source: FinishedFromCancellation}
		if t.pendingFinish != nil {
			info = *t.pendingFinish
			t.pendingFinish = nil
		}
		t.queueAutomaticFinishLocked(info)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.eventQueue.dispatch(t.mainPath)
}

// queueAutomaticFinishLocked stages (or, if cancel handling has
// already completed, immediately dispatches) the finish that follows
// detecting cancellation. The caller must hold t.mu.
//
// This exists to resolve the race between Cancel's own DidCancel
// observer chain completing and whichever of startInternal or mainPath
// first notices isCancelled: if handleCancel already finished by the
// time we get here, there's nothing left to wait for and we can finish
// right away; otherwise we record the pending finish and let
// handleCancel's completion pick it up once it's done.
func (t *Task) queueAutomaticFinishLocked(info FinishInfo) {
	if t.finishedHandlingCancel {
		t.eventQueue.dispatch(func() { t.finishWithInfo(info) })
		return
	}
	pending := info
	t.pendingAutomaticFinish = &pending
}

// mainPath runs on the Task's own EventQueue. It fires WillExecute,
// then re-checks cancellation: if the Task was cancelled after
// startInternal already committed to running it but before execute
// itself began, it takes the Started -> Finishing shortcut here
// instead; otherwise it advances to Executing and runs the Body.
func (t *Task) mainPath() {
	group := t.dispatchObservers(eventWillExecute, func(o *Observer) {
		if o.WillExecute != nil {
			o.WillExecute(t)
		}
	})
	t.eventQueue.dispatchNotify(group, func() {
		t.mu.Lock()
		if t.isCancelled {
			// See startInternal: errors already live in t.errs, so
			// Errors stays empty here too.
			info := FinishInfo{Source: FinishedFromCancellation}
			t.queueAutomaticFinishLocked(info)
			t.mu.Unlock()
			return
		}
		if t.sm.tryAdvance(TaskState_Executing) != transitionAdvanced {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
		t.runExecute()
	})
}

// runExecute hops from the Task's own EventQueue onto the host Queue's
// underlying EventQueue to actually run the Body: the Task's own queue
// serializes callbacks, but execute runs wherever the host decides,
// then hops back to fire DidExecute and drive the finish path, still
// fully serialized through the Task's own queue.
func (t *Task) runExecute() {
	t.mu.Lock()
	q := t.queue
	ctx := t.ctx
	t.mu.Unlock()

	underlying := t.eventQueue
	if q != nil {
		if uq := q.UnderlyingEventQueue(); uq != nil {
			underlying = uq
		}
	}

	var runErr error
	if underlying == t.eventQueue {
		runErr = t.body.Execute(ctx, t)
	} else {
		t.eventQueue.dispatchSynchronizedWith(underlying, func() {
			runErr = t.body.Execute(ctx, t)
		})
	}

	group := t.dispatchObservers(eventDidExecute, func(o *Observer) {
		if o.DidExecute != nil {
			o.DidExecute(t)
		}
	})
	t.eventQueue.dispatchNotify(group, func() {
		var errs []error
		if runErr != nil {
			errs = []error{runErr}
		}
		t.finishWithInfo(FinishInfo{Source: FinishedNormally, Errors: errs})
	})
}

// Cancel marks the Task cancelled, appends errs to its accumulated
// errors, cancels its context (unblocking anything selecting on
// ctx.Done(), including an in-flight Condition evaluation or Body),
// and fans WillCancel/DidCancel out to every Observer. Safe to call
// from any goroutine at any point up to Finishing; a Task already
// cancelled, or already at Finishing or past it, ignores a repeat call.
func (t *Task) Cancel(errs ...error) {
	t.mu.Lock()
	if t.sm.get() >= TaskState_Finishing {
		t.mu.Unlock()
		return
	}
	if t.isCancelled {
		t.mu.Unlock()
		return
	}
	t.isCancelled = true
	t.errs.append(errs...)
	if t.cancelFunc != nil {
		t.cancelFunc()
	}
	snapshot := t.errs.slice()
	t.mu.Unlock()

	t.eventQueue.dispatch(func() { t.handleCancel(snapshot) })
}

// handleCancel runs on the Task's own EventQueue: it fans WillCancel
// and DidCancel out to every Observer and to the Body's DidCancelHook,
// then records that cancel handling has completed and, if a finish was
// staged in the meantime by startInternal or mainPath, runs it now.
func (t *Task) handleCancel(errs []error) {
	willGroup := t.dispatchObservers(eventWillCancel, func(o *Observer) {
		if o.WillCancel != nil {
			o.WillCancel(t, errs)
		}
	})
	t.eventQueue.dispatchNotify(willGroup, func() {
		didGroup := t.dispatchObservers(eventDidCancel, func(o *Observer) {
			if o.DidCancel != nil {
				o.DidCancel(t, errs)
			}
		})
		if hook, ok := t.body.(DidCancelHook); ok {
			hook.DidCancel(t, errs)
		}
		t.eventQueue.dispatchNotify(didGroup, func() {
			t.mu.Lock()
			t.finishedHandlingCancel = true
			pending := t.pendingAutomaticFinish
			t.pendingAutomaticFinish = nil
			t.mu.Unlock()
			if pending != nil {
				t.finishWithInfo(*pending)
			}
		})
	})
}

// Finish is the public entry point a Body (or external caller) uses to
// end a Task early or supply additional errors alongside its own
// return value. Most Tasks never need to call it directly: runExecute
// already calls finishWithInfo once the Body returns.
func (t *Task) Finish(errs ...error) {
	t.eventQueue.dispatch(func() {
		t.finishWithInfo(FinishInfo{Source: FinishedNormally, Errors: errs})
	})
}

// finishWithInfo drives Started/Executing through Finishing to
// Finished: transitions to Finishing (taking the Started -> Finishing
// shortcut if execute never ran), fires WillFinish, transitions to
// Finished, releases any held exclusivity categories, fires DidFinish,
// and resolves the Task's Future. Idempotent: a second call
// racing against an already-in-flight finish is a silent no-op.
//
// If called before the Task has reached Started, Finishing isn't a
// legal edge yet (there's no Started/Executing to advance out of).
// Finish on a cancelled Task in that window is honored anyway: info is
// stashed in pendingFinish for startInternal to consume once the Task
// actually reaches Started. Finish on a Task that isn't cancelled and
// hasn't started is a programmer error instead.
func (t *Task) finishWithInfo(info FinishInfo) {
	t.mu.Lock()
	if t.isHandlingFinish || t.sm.get() >= TaskState_Finishing {
		t.mu.Unlock()
		return
	}
	if t.sm.get() < TaskState_Started {
		if !t.isCancelled {
			t.mu.Unlock()
			debugAssert("Finish called on Task %q before Started while not cancelled", t.name)
			return
		}
		pending := info
		t.pendingFinish = &pending
		t.mu.Unlock()
		return
	}
	t.isHandlingFinish = true
	t.errs.append(info.Errors...)
	if t.sm.tryAdvance(TaskState_Finishing) != transitionAdvanced {
		t.mu.Unlock()
		return
	}
	errsSoFar := t.errs.slice()
	t.mu.Unlock()

	if hook, ok := t.body.(WillFinishHook); ok {
		hook.WillFinish(t, errsSoFar)
	}
	willGroup := t.dispatchObservers(eventWillFinish, func(o *Observer) {
		if o.WillFinish != nil {
			o.WillFinish(t, errsSoFar)
		}
	})
	t.eventQueue.dispatchNotify(willGroup, func() {
		t.mu.Lock()
		t.sm.tryAdvance(TaskState_Finished)
		lock := t.exclusivityLock
		registry := t.exclusivityRegistry
		finalErrs := t.errs.slice()
		t.mu.Unlock()

		if lock != nil {
			if registry == nil {
				registry = DefaultExclusivityRegistry
			}
			registry.Release(lock)
		}

		if hook, ok := t.body.(DidFinishHook); ok {
			hook.DidFinish(t, finalErrs)
		}
		didGroup := t.dispatchObservers(eventDidFinish, func(o *Observer) {
			if o.DidFinish != nil {
				o.DidFinish(t, finalErrs)
			}
		})
		t.eventQueue.dispatchNotify(didGroup, func() {
			var merr *multierror.Error
			for _, e := range finalErrs {
				merr = multierror.Append(merr, e)
			}
			t.resolve(merr.ErrorOrNil())
		})
	})
}

// dispatchObservers fans cb out over every attached Observer, honoring
// each Observer's own EventQueue affinity via dispatchSynchronizedWith
// (an Observer pinned to t.eventQueue itself is called inline),
// and returns a pendingGroup that drains once every one of those calls
// has returned. The caller must already be running on t.eventQueue.
func (t *Task) dispatchObservers(kind pendingEventKind, cb func(o *Observer)) *pendingGroup {
	observers := t.observersSnapshot()
	group := newPendingGroup(len(observers))
	if len(observers) == 0 {
		return group
	}
	logger := t.Logger()
	logger.Debug().Str("event", kind.String()).Int("observers", len(observers)).Msg("dispatching observers")
	for _, o := range observers {
		o := o
		if o.Queue != nil && o.Queue != t.eventQueue {
			t.eventQueue.dispatchSynchronizedWith(o.Queue, func() {
				cb(o)
				group.release()
			})
		} else {
			cb(o)
			group.release()
		}
	}
	return group
}

// dispatchObserversInline fans cb out over every attached Observer the
// same way dispatchObservers does, but without requiring the caller to
// already be on t.eventQueue's worker — it uses runSynchronizedWith
// directly instead of going through eq.dispatchSynchronizedWith's
// assertion. Produce is the one caller: it runs from inside a Body, and
// nothing else can be running on t.eventQueue while that Body is still
// running (see Produce), even though the calling goroutine isn't
// t.eventQueue's own worker goroutine.
func (t *Task) dispatchObserversInline(kind pendingEventKind, cb func(o *Observer)) {
	observers := t.observersSnapshot()
	if len(observers) == 0 {
		return
	}
	logger := t.Logger()
	logger.Debug().Str("event", kind.String()).Int("observers", len(observers)).Msg("dispatching observers")
	for _, o := range observers {
		o := o
		if o.Queue != nil && o.Queue != t.eventQueue {
			runSynchronizedWith(o.Queue, func() { cb(o) })
		} else {
			cb(o)
		}
	}
}

// Produce enqueues child on the same Queue this Task is enrolled on,
// establishing a happens-before edge between child's enqueue and
// before's delivery: if before is non-nil, an extra hold is placed on
// it before child is added and released only once child has actually
// been enrolled. It fans WillAdd/DidAdd out to this Task's Observers
// around the add.
// Returns ErrNoQueue, without enqueueing anything, if this Task was
// never itself enrolled on a Queue.
//
// Produce is meant to be called from inside a running Body. Whether
// runExecute ran the Body directly on the Task's own EventQueue worker
// (no distinct underlying queue) or parked that worker on
// dispatchSynchronizedWith while the Body runs on the host Queue's
// underlying EventQueue instead, the Task's own EventQueue can't drain
// anything newly dispatched to it until the Body returns — so hopping
// back onto it here would deadlock: the hop can't run until the Body
// returns, and the Body is waiting on Produce. In both cases nothing
// else can be running on the Task's own EventQueue concurrently with
// the Body, so it's safe to fire WillAdd/AddTask/DidAdd inline on the
// calling goroutine instead.
func (t *Task) Produce(child *Task, before *PendingEvent) (Future, error) {
	t.mu.Lock()
	q := t.queue
	t.mu.Unlock()
	if q == nil {
		return nil, ErrNoQueue
	}

	if before != nil {
		before.Hold()
	}

	t.dispatchObserversInline(eventWillAdd, func(o *Observer) {
		if o.WillAdd != nil {
			o.WillAdd(t, child)
		}
	})
	future := q.AddTask(child)
	t.dispatchObserversInline(eventDidAdd, func(o *Observer) {
		if o.DidAdd != nil {
			o.DidAdd(t, child)
		}
	})

	if before != nil {
		before.Release()
	}

	return future, nil
}

// NewPendingEvent returns a PendingEvent usable as Produce's before
// argument, initially held open once by the caller — release it once
// whatever it represents has actually happened.
func NewPendingEvent() PendingEvent {
	g := newPendingGroup(1)
	return newPendingEvent(g)
}
