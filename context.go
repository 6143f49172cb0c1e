package opq

import "context"

// ConditionEvaluationContext is the context type threaded through
// Condition.Evaluate. It is a plain context.Context;
// predicates must honor cancellation the same way any other
// context-consuming code does, by selecting on ctx.Done().
type ConditionEvaluationContext = context.Context

// ctxKey is the single key under which this package attaches
// information to a context.Context, adapted from go-sup/context.go's
// "one struct under one key" trick (see DESIGN.md) to avoid the
// linked-list-of-values overhead of multiple WithValue calls.
type ctxKey struct{}

type ctxAttachments struct {
	TaskID   string
	TaskName string
}

func withTaskContext(parent context.Context, t *Task) context.Context {
	return context.WithValue(parent, ctxKey{}, ctxAttachments{
		TaskID:   t.id.String(),
		TaskName: t.name,
	})
}

func readContext(ctx context.Context) ctxAttachments {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return ctxAttachments{TaskID: "[unmanaged]", TaskName: "[unmanaged]"}
	}
	return v.(ctxAttachments)
}

// ContextTaskName returns the name of the Task that produced ctx (via
// its Condition evaluation or an underlying-queue dispatch), or
// "[unmanaged]" if ctx did not originate from this package.
func ContextTaskName(ctx context.Context) string {
	return readContext(ctx).TaskName
}

// ContextTaskID mirrors ContextTaskName for the Task's identity string.
func ContextTaskID(ctx context.Context) string {
	return readContext(ctx).TaskID
}
