package opconditions

import "github.com/relaycore/opq"

// SilentCondition wraps another Condition so that its failures are
// downgraded to a plain unsatisfied result: the owning Task still
// cancels, but without accumulating the wrapped Condition's error.
// Useful for conditions whose failure is expected and uninteresting
// (a "feature enabled" check, say) where surfacing an error would just
// be noise.
type SilentCondition struct {
	Condition opq.Condition
}

func Silence(c opq.Condition) *SilentCondition {
	return &SilentCondition{Condition: c}
}

func (s *SilentCondition) Evaluate(ctx opq.ConditionEvaluationContext, t *opq.Task) opq.ConditionResult {
	r := s.Condition.Evaluate(ctx, t)
	if r.FailureError() != nil {
		return opq.ConditionUnsatisfied()
	}
	return r
}

func (s *SilentCondition) Dependencies() []*opq.Task {
	return s.Condition.Dependencies()
}
