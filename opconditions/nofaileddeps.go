package opconditions

import "github.com/relaycore/opq"

// NoFailedDependenciesCondition is satisfied only if every one of the
// owning Task's Dependencies that is itself a *opq.Task finished with
// no errors. Non-Task Dependencies (a bare readiness signal) are
// ignored, since they have no error state to inspect.
type NoFailedDependenciesCondition struct{}

func (NoFailedDependenciesCondition) Evaluate(ctx opq.ConditionEvaluationContext, t *opq.Task) opq.ConditionResult {
	for _, dep := range t.Dependencies() {
		depTask, ok := dep.(*opq.Task)
		if !ok {
			continue
		}
		if errs := depTask.Errors(); len(errs) > 0 {
			return opq.ConditionUnsatisfied()
		}
	}
	return opq.ConditionSatisfied()
}

func (NoFailedDependenciesCondition) Dependencies() []*opq.Task { return nil }
