package opq

// Observer receives lifecycle notifications from a Task it has been
// attached to. Every field is optional; a nil callback
// is simply skipped. If Queue is non-nil, that callback is delivered
// via dispatchSynchronizedWith onto the observer's own EventQueue
// instead of running inline on the Task's — useful when an observer
// wants to serialize its own bookkeeping against other work of its
// own, rather than against the owning Task's callbacks.
//
// Grounded on go-sup/task.go's optional-interface "upgrade" pattern
// (NamedTask and friends), generalized here into a plain struct of
// closures since Go observers rarely need more than one or two hooks
// at a time; see DESIGN.md.
type Observer struct {
	Queue *EventQueue

	DidAttach   func(t *Task)
	WillExecute func(t *Task)
	DidExecute  func(t *Task)
	WillCancel  func(t *Task, errs []error)
	DidCancel   func(t *Task, errs []error)
	WillAdd     func(t *Task, child *Task)
	DidAdd      func(t *Task, child *Task)
	WillFinish  func(t *Task, errs []error)
	DidFinish   func(t *Task, errs []error)
}

// pendingEventKind names which callback dispatchObservers is currently
// fanning out, purely for log/debug context.
type pendingEventKind int

const (
	eventDidAttach pendingEventKind = iota
	eventWillExecute
	eventDidExecute
	eventWillCancel
	eventDidCancel
	eventWillAdd
	eventDidAdd
	eventWillFinish
	eventDidFinish
)

func (k pendingEventKind) String() string {
	switch k {
	case eventDidAttach:
		return "DidAttach"
	case eventWillExecute:
		return "WillExecute"
	case eventDidExecute:
		return "DidExecute"
	case eventWillCancel:
		return "WillCancel"
	case eventDidCancel:
		return "DidCancel"
	case eventWillAdd:
		return "WillAdd"
	case eventDidAdd:
		return "DidAdd"
	case eventWillFinish:
		return "WillFinish"
	case eventDidFinish:
		return "DidFinish"
	default:
		return "Unknown"
	}
}
