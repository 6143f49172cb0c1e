package opqueue

// Phase is the Queue's own admission/shutdown state machine — distinct
// from any Task's TaskState (which governs one Task's lifecycle): a
// Phase governs whether the Queue as a whole is still accepting new
// Tasks.
//
// Lifted directly from go-sup/engineShared.go's Phase enum and reused
// verbatim as this Queue's admission/shutdown machine, repurposed from
// governing a single supervised run to governing an open-ended,
// repeatedly-submitted-to task queue; see DESIGN.md.
type Phase uint32

const (
	Phase_uninitialized Phase = iota
	Phase_open
	Phase_draining
	Phase_closed
)

func (p Phase) String() string {
	switch p {
	case Phase_uninitialized:
		return "uninitialized"
	case Phase_open:
		return "open"
	case Phase_draining:
		return "draining"
	case Phase_closed:
		return "closed"
	default:
		return "unknown"
	}
}
