package opconditions

import "github.com/relaycore/opq"

// MutuallyExclusiveCondition always evaluates satisfied; its role is
// purely to name one or more exclusivity categories the owning Task
// must acquire from the Exclusivity Registry before it may run.
// It implements opq.MutualExclusivityCondition.
type MutuallyExclusiveCondition struct {
	Categories []string
}

// MutuallyExclusive is a constructor for MutuallyExclusiveCondition
// taking its categories directly.
func MutuallyExclusive(categories ...string) *MutuallyExclusiveCondition {
	return &MutuallyExclusiveCondition{Categories: categories}
}

func (m *MutuallyExclusiveCondition) Evaluate(ctx opq.ConditionEvaluationContext, t *opq.Task) opq.ConditionResult {
	return opq.ConditionSatisfied()
}

func (m *MutuallyExclusiveCondition) Dependencies() []*opq.Task { return nil }

func (m *MutuallyExclusiveCondition) MutuallyExclusiveCategories() []string {
	return m.Categories
}
