package opobservers

import "github.com/relaycore/opq"

// BlockOption configures a BlockObserver via functional options,
// matching the corpus's EngineOption convention (see DESIGN.md).
type BlockOption func(*opq.Observer)

// OnWillExecute, OnDidExecute, OnDidCancel, and OnDidFinish set the
// corresponding opq.Observer callback.
func OnWillExecute(fn func(t *opq.Task)) BlockOption {
	return func(o *opq.Observer) { o.WillExecute = fn }
}

func OnDidExecute(fn func(t *opq.Task)) BlockOption {
	return func(o *opq.Observer) { o.DidExecute = fn }
}

func OnDidCancel(fn func(t *opq.Task, errs []error)) BlockOption {
	return func(o *opq.Observer) { o.DidCancel = fn }
}

func OnDidFinish(fn func(t *opq.Task, errs []error)) BlockOption {
	return func(o *opq.Observer) { o.DidFinish = fn }
}

// OnQueue pins the resulting Observer's callbacks to run on eq instead
// of the owning Task's own EventQueue.
func OnQueue(eq *opq.EventQueue) BlockOption {
	return func(o *opq.Observer) { o.Queue = eq }
}

// NewBlockObserver builds an *opq.Observer from a set of closures,
// adapted from go-sup/task.go's closure-wrapping idiom (TaskOfFunc
// wrapping a plain function as a Task) applied here to Observer
// instead of Task; see DESIGN.md.
func NewBlockObserver(opts ...BlockOption) *opq.Observer {
	o := &opq.Observer{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
