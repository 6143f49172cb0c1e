package opq

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Condition gates whether a Task is allowed to run. All
// of a Task's Conditions are evaluated in parallel once every
// Dependency has finished; the Task proceeds only if every Condition is
// satisfied.
type Condition interface {
	// Evaluate reports whether the condition holds for t. ctx is
	// cancelled if t is cancelled while evaluation is still underway.
	Evaluate(ctx ConditionEvaluationContext, t *Task) ConditionResult

	// Dependencies returns any auxiliary Tasks this condition wants
	// enqueued and finished before it, and before its owning Task,
	// evaluate. Most conditions return nil.
	Dependencies() []*Task
}

// MutualExclusivityCondition is the optional interface a Condition can
// implement to participate in the Exclusivity Registry.
type MutualExclusivityCondition interface {
	Condition
	MutuallyExclusiveCategories() []string
}

// ConditionResult is the outcome of evaluating a single Condition:
// satisfied, unsatisfied (a soft "not now", carrying no error), or
// failed (an error occurred while evaluating, which is distinct from
// unsatisfied and takes priority over a sibling's unsatisfied result).
type ConditionResult struct {
	satisfied bool
	err       error
}

// ConditionSatisfied reports a passing evaluation.
func ConditionSatisfied() ConditionResult { return ConditionResult{satisfied: true} }

// ConditionUnsatisfied reports a clean, errorless "no".
func ConditionUnsatisfied() ConditionResult { return ConditionResult{} }

// ConditionFailed reports that evaluation itself broke down with err.
func ConditionFailed(err error) ConditionResult { return ConditionResult{err: err} }

func (r ConditionResult) isFailure() bool   { return r.err != nil }
func (r ConditionResult) isSatisfied() bool { return r.satisfied && r.err == nil }

// Satisfied reports whether r represents a clean pass, for Condition
// implementations (like NegatedCondition, in opconditions) that need
// to inspect another Condition's result.
func (r ConditionResult) Satisfied() bool { return r.isSatisfied() }

// FailureError returns the error a failed result carries, or nil if r
// wasn't a failure.
func (r ConditionResult) FailureError() error { return r.err }

// conditionEvaluatorState mirrors the parent Task's own state machine
// closely enough to log meaningfully, but is intentionally a much
// smaller enum: an evaluator only ever needs to know whether it hasn't
// started, is running, or has finished ( §4.5's "sub-task-like
// helper, not a Task itself").
type conditionEvaluatorState int32

const (
	evaluatorPending conditionEvaluatorState = iota
	evaluatorEvaluating
	evaluatorFinished
)

// conditionEvaluator runs every Condition attached to a Task in
// parallel, once that Task's Dependencies (and each Condition's own
// Dependencies, mirrored in below) have finished. It resolves priority
// among the results — a failure beats an unsatisfied result, which
// beats success — then either signals the owning Task to cancel (with
// the failures' errors, or silently) or to proceed to acquiring
// exclusivity.
//
// Grounded on go-sup/engineForkJoin.go's fan-out/collect loop,
// generalized from "wait for N children, collect their errors" to
// "evaluate N predicates, apply a priority rule"; the errgroup-based
// parallel launch is grounded on other_examples/mrz1836-atlas__engine.go.
// See DESIGN.md.
type conditionEvaluator struct {
	task       *Task
	conditions []Condition

	state conditionEvaluatorState
}

func newConditionEvaluator(t *Task, conditions []Condition) *conditionEvaluator {
	return &conditionEvaluator{task: t, conditions: conditions}
}

// mirrorDependencies enqueues every auxiliary Task named by a
// Condition's Dependencies, on the same Queue as the owning Task, so
// they can run and finish before evaluation proceeds. Called while the
// owning Task is still in WillEnqueue/Pending, before the evaluator
// itself runs.
func (ce *conditionEvaluator) mirrorDependencies(q Queue) []*Task {
	var mirrored []*Task
	for _, c := range ce.conditions {
		for _, dep := range c.Dependencies() {
			ce.task.AddDependency(dep)
			mirrored = append(mirrored, dep)
			q.AddTask(dep)
		}
	}
	return mirrored
}

// run evaluates every condition in parallel and returns:
//   - (true, nil) if every condition is satisfied — proceed to acquire
//     exclusivity and execute.
//   - (false, errs) if one or more conditions failed — errs holds every
//     failure's error, and the owning Task should cancel with them.
//   - (false, nil) if every unsatisfied condition returned cleanly —
//     the owning Task should cancel silently (no errors attached).
//
// If ctx is cancelled before evaluation completes, run returns as soon
// as every launched Evaluate call returns (errgroup still waits for
// them; conditions are expected to select on ctx.Done() themselves),
// treating cancellation as an unsatisfied, error-free outcome unless a
// condition reported an actual failure first.
func (ce *conditionEvaluator) run(ctx context.Context) (bool, []error) {
	ce.state = evaluatorEvaluating
	defer func() { ce.state = evaluatorFinished }()

	if len(ce.conditions) == 0 {
		return true, nil
	}

	results := make([]ConditionResult, len(ce.conditions))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range ce.conditions {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.Evaluate(gctx, ce.task)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	anyUnsatisfied := false
	for _, r := range results {
		switch {
		case r.isFailure():
			failures = append(failures, r.err)
		case !r.isSatisfied():
			anyUnsatisfied = true
		}
	}

	if len(failures) > 0 {
		return false, failures
	}
	if anyUnsatisfied || ctx.Err() != nil {
		return false, nil
	}
	return true, nil
}

// exclusivityCategories collects every category named by any
// MutualExclusivityCondition among ce.conditions, deduplicated.
func (ce *conditionEvaluator) exclusivityCategories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, c := range ce.conditions {
		mc, ok := c.(MutualExclusivityCondition)
		if !ok {
			continue
		}
		for _, cat := range mc.MutuallyExclusiveCategories() {
			if !seen[cat] {
				seen[cat] = true
				cats = append(cats, cat)
			}
		}
	}
	return cats
}
