package opobservers

import (
	"github.com/rs/zerolog"

	"github.com/relaycore/opq"
)

// NewLoggingObserver returns an *opq.Observer that logs four lifecycle
// events, at Debug (WillExecute/DidExecute) or Info
// (DidCancel/DidFinish), tagged with the Task's id and name. DidAttach,
// WillCancel, WillAdd, DidAdd and WillFinish are not logged.
//
// Grounded on other_examples/mrz1836-atlas__engine.go's
// buildStepLogEvent — one shared logger, structured fields per event,
// no per-call allocation of a new logger. See DESIGN.md.
func NewLoggingObserver(logger zerolog.Logger) *opq.Observer {
	fields := func(t *opq.Task) *zerolog.Event {
		return logger.Info().Str("task_id", t.ID().String()).Str("task", t.Name())
	}
	return &opq.Observer{
		WillExecute: func(t *opq.Task) {
			logger.Debug().Str("task_id", t.ID().String()).Str("task", t.Name()).Msg("will execute")
		},
		DidExecute: func(t *opq.Task) {
			logger.Debug().Str("task_id", t.ID().String()).Str("task", t.Name()).Msg("did execute")
		},
		DidCancel: func(t *opq.Task, errs []error) {
			ev := fields(t)
			if len(errs) > 0 {
				ev = ev.Errs("errors", errs)
			}
			ev.Msg("did cancel")
		},
		DidFinish: func(t *opq.Task, errs []error) {
			ev := fields(t)
			if len(errs) > 0 {
				ev = ev.Errs("errors", errs)
			}
			ev.Msg("did finish")
		},
	}
}
