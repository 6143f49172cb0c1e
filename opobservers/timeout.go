package opobservers

import (
	"time"

	"github.com/relaycore/opq"
)

// TimeoutObserver cancels its Task if it is still running (or hasn't
// even started) once the deadline elapses. Attach it before the Task
// is enqueued, same as any other Observer.
type TimeoutObserver struct {
	Duration time.Duration

	timer *time.Timer
}

// NewTimeoutObserver returns an *opq.Observer wired to cancel the
// owning Task after d, using DidAttach (fired on the Task's own
// EventQueue shortly after AddObserver) to start the clock, and
// DidFinish to stop it early if the Task finishes on its own first.
func NewTimeoutObserver(d time.Duration) *opq.Observer {
	to := &TimeoutObserver{Duration: d}
	return &opq.Observer{
		DidAttach: func(t *opq.Task) {
			to.timer = time.AfterFunc(to.Duration, func() {
				t.Cancel(errTimeout{d: to.Duration})
			})
		},
		DidFinish: func(t *opq.Task, errs []error) {
			if to.timer != nil {
				to.timer.Stop()
			}
		},
	}
}

type errTimeout struct{ d time.Duration }

func (e errTimeout) Error() string { return "opobservers: task timed out after " + e.d.String() }
