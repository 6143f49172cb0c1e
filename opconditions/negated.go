package opconditions

import "github.com/relaycore/opq"

// NegatedCondition inverts another Condition's result: satisfied
// becomes unsatisfied and vice versa. A failure passes through
// unchanged — negating "evaluation broke" doesn't make sense.
type NegatedCondition struct {
	Condition opq.Condition
}

func Negate(c opq.Condition) *NegatedCondition {
	return &NegatedCondition{Condition: c}
}

func (n *NegatedCondition) Evaluate(ctx opq.ConditionEvaluationContext, t *opq.Task) opq.ConditionResult {
	r := n.Condition.Evaluate(ctx, t)
	if r.FailureError() != nil {
		return r
	}
	if r.Satisfied() {
		return opq.ConditionUnsatisfied()
	}
	return opq.ConditionSatisfied()
}

func (n *NegatedCondition) Dependencies() []*opq.Task {
	return n.Condition.Dependencies()
}
