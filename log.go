package opq

import (
	"os"

	"github.com/rs/zerolog"
)

// pkgLogger is the module-wide default logger, consulted by any Task
// that hasn't been given its own via SetLogger. Grounded on
// mrz1836-atlas__engine.go's constructor-injected zerolog.Logger field
// (see DESIGN.md); the package-level default exists because, unlike
// atlas's Engine, a Task can be constructed in a great many places
// without a natural single injection point.
var pkgLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

// SetDefaultLogger replaces the module-wide default logger used by
// Tasks that have not called SetLogger themselves. Not safe to call
// concurrently with Task lifecycle activity; intended for one-time use
// at program startup, e.g. SetDefaultLogger(zerolog.Nop()) to silence
// the module entirely.
func SetDefaultLogger(l zerolog.Logger) {
	pkgLogger = l
}

// DefaultLogger returns the module-wide default logger.
func DefaultLogger() zerolog.Logger {
	return pkgLogger
}

// Logger returns this Task's logger: its own, if SetLogger was called,
// else the module default, tagged with the Task's id and name so log
// lines from concurrently-running Tasks are distinguishable.
func (t *Task) Logger() zerolog.Logger {
	t.mu.Lock()
	own := t.logger
	t.mu.Unlock()
	base := pkgLogger
	if own != nil {
		base = *own
	}
	return base.With().Str("task_id", t.id.String()).Str("task", t.name).Logger()
}

// SetLogger gives this Task its own logger instead of the module
// default. Call it before submitting the Task to a queue.
func (t *Task) SetLogger(l zerolog.Logger) {
	t.mu.Lock()
	t.logger = &l
	t.mu.Unlock()
}
