package opq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCondition struct {
	result ConditionResult
}

func (c stubCondition) Evaluate(ctx context.Context, t *Task) ConditionResult { return c.result }
func (c stubCondition) Dependencies() []*Task                                { return nil }

func TestConditionEvaluatorAllSatisfiedProceeds(t *testing.T) {
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		stubCondition{result: ConditionSatisfied()},
		stubCondition{result: ConditionSatisfied()},
	})
	ok, errs := ce.run(context.Background())
	assert.True(t, ok)
	assert.Nil(t, errs)
}

func TestConditionEvaluatorSingleFailureBlocksWithError(t *testing.T) {
	wantErr := errors.New("boom")
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		stubCondition{result: ConditionSatisfied()},
		stubCondition{result: ConditionFailed(wantErr)},
	})
	ok, errs := ce.run(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []error{wantErr}, errs)
}

func TestConditionEvaluatorSingleUnsatisfiedBlocksSilently(t *testing.T) {
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		stubCondition{result: ConditionSatisfied()},
		stubCondition{result: ConditionUnsatisfied()},
	})
	ok, errs := ce.run(context.Background())
	assert.False(t, ok)
	assert.Nil(t, errs)
}

func TestConditionEvaluatorFailureOutranksUnsatisfied(t *testing.T) {
	wantErr := errors.New("boom")
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		stubCondition{result: ConditionUnsatisfied()},
		stubCondition{result: ConditionFailed(wantErr)},
	})
	ok, errs := ce.run(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []error{wantErr}, errs, "a failure must win even alongside an unsatisfied sibling")
}

func TestConditionEvaluatorMultipleFailuresAllCollected(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		stubCondition{result: ConditionFailed(err1)},
		stubCondition{result: ConditionFailed(err2)},
	})
	ok, errs := ce.run(context.Background())
	assert.False(t, ok)
	assert.ElementsMatch(t, []error{err1, err2}, errs)
}

func TestConditionEvaluatorNoConditionsProceeds(t *testing.T) {
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), nil)
	ok, errs := ce.run(context.Background())
	assert.True(t, ok)
	assert.Nil(t, errs)
}

func TestConditionEvaluatorExclusivityCategoriesDeduplicated(t *testing.T) {
	ce := newConditionEvaluator(NewTask(BodyFunc(func(context.Context, *Task) error { return nil })), []Condition{
		mutexStub{categories: []string{"a", "b"}},
		mutexStub{categories: []string{"b", "c"}},
	})
	assert.Equal(t, []string{"a", "b", "c"}, ce.exclusivityCategories())
}

type mutexStub struct {
	categories []string
}

func (m mutexStub) Evaluate(context.Context, *Task) ConditionResult { return ConditionSatisfied() }
func (m mutexStub) Dependencies() []*Task                           { return nil }
func (m mutexStub) MutuallyExclusiveCategories() []string           { return m.categories }
