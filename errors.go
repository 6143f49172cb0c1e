package opq

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrNoQueue is returned by Task.Produce when the Task has never been
// enrolled on any Queue.
var ErrNoQueue = errors.New("opq: task is not enqueued on any queue")

// ProgrammerError marks a violated invariant: a call made outside its
// legal window (adding a dependency after Started, a condition after
// WillEnqueue, an observer at or after Pending, an illegal state
// transition, finishing before Started while not cancelled). In the
// debug posture (PanicOnIllegalTransition == true, the default) these
// are raised via panic; in the release posture they are logged and the
// offending call is a silent no-op.
type ProgrammerError struct {
	Op  string
	Msg string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("opq: programmer error in %s: %s", e.Op, e.Msg)
}

func programmerError(op, format string, args ...interface{}) *ProgrammerError {
	return &ProgrammerError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// debugAssert enforces PanicOnIllegalTransition's chosen posture. It is
// the sole intentional panic path in this package: abort in debug
// builds, log-and-ignore in release ones.
func debugAssert(format string, args ...interface{}) {
	if PanicOnIllegalTransition {
		panic(programmerError("invariant", format, args...))
	}
	pkgLogger.Warn().Msgf("illegal operation suppressed (release posture): "+format, args...)
}

// ConditionFailure aggregates the errors returned by one or more failing
// Conditions during evaluation. It is only ever constructed inside
// this package and handed to Task.Cancel, so there's no exported
// constructor; callers see it as an element of Task.Errors().
type ConditionFailure struct {
	Err *multierror.Error
}

func (cf *ConditionFailure) Error() string {
	return cf.Err.Error()
}

func newConditionFailure(errs []error) *ConditionFailure {
	cf := &ConditionFailure{Err: &multierror.Error{}}
	for _, e := range errs {
		if e != nil {
			cf.Err = multierror.Append(cf.Err, e)
		}
	}
	return cf
}

// errorList is an ordered error accumulator. It is not safe for
// concurrent use on its own; every caller in this package holds the
// owning Task's mutex while touching one.
type errorList struct {
	err *multierror.Error
}

func (l *errorList) append(errs ...error) {
	for _, e := range errs {
		if e == nil {
			continue
		}
		l.err = multierror.Append(l.err, e)
	}
}

// slice returns a defensive copy, safe to hand to observers and hooks
// running outside the lock.
func (l *errorList) slice() []error {
	if l.err == nil || len(l.err.Errors) == 0 {
		return nil
	}
	out := make([]error, len(l.err.Errors))
	copy(out, l.err.Errors)
	return out
}
