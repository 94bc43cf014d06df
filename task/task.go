// Package task implements the one-shot timer of spec.md §4.8: schedule a
// callback for an absolute monotonic baseline, with best-effort
// cancellation. Grounded on the teacher's core/concurrency/eventloop.go
// backoff-timer usage and the reactor package's "submit, then dispatch on
// completion" shape, generalized into a standalone schedulable unit since
// the teacher itself has no timer abstraction of its own.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package task

import (
	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

// State is a Task's lifecycle stage, spec.md §8 property 5: Initial →
// Scheduled → (Executed|Canceled) is the only legal path.
type State int32

const (
	StateInitial State = iota
	StateScheduled
	StateExecuted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateScheduled:
		return "Scheduled"
	case StateExecuted:
		return "Executed"
	case StateCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Task is a single schedulable timer bound to one Loop.
type Task struct {
	l        *loop.Loop
	cb       func()
	userData any

	state    State
	deadline clock.Time
	hasEvent bool
	evRef    loop.EventRef
	ev       *backend.Event
}

// Init binds a Task to l and cb; userData is opaque to the Task and
// available to the caller via UserData. State starts Initial.
func Init(l *loop.Loop, cb func(), userData any) *Task {
	return &Task{l: l, cb: cb, userData: userData, state: StateInitial}
}

// UserData returns the opaque value passed to Init.
func (t *Task) UserData() any { return t.userData }

// State returns the current lifecycle stage.
func (t *Task) State() State { return t.state }

// Deadline reports the baseline the task was last scheduled for, and
// whether one is currently set (false once Executed or Canceled is
// cleared or the task was never scheduled).
func (t *Task) Deadline() (clock.Time, bool) {
	if t.state != StateScheduled {
		return 0, false
	}
	return t.deadline, true
}

// ScheduleAt transitions Initial or a terminal state (Executed/Canceled)
// to Scheduled, allocating an event block and submitting a platform
// timer for baseline. If baseline is already ≤ now the task still fires
// on the next iteration, never inline.
func (t *Task) ScheduleAt(baseline clock.Time) errs.Kind {
	if t.state == StateScheduled {
		return errs.ESTATE
	}

	ev, ref, k := t.l.EventAlloc(t.onComplete)
	if k != errs.OK {
		return k
	}

	if k := t.l.Submit(ev, backend.TimerOp{Baseline: baseline}); k != errs.OK {
		t.l.EventDealloc(ref)
		return k
	}

	t.ev = ev
	t.evRef = ref
	t.hasEvent = true
	t.deadline = baseline
	t.state = StateScheduled
	return errs.OK
}

// Cancel requests backend cancellation of the underlying timer. The
// completion callback observes ECANCELED asynchronously and performs the
// Scheduled → Canceled transition; Cancel itself never fires inline.
func (t *Task) Cancel() errs.Kind {
	if t.state != StateScheduled {
		return errs.ESTATE
	}
	return t.l.Cancel(t.ev)
}

// onComplete is the event callback wired by ScheduleAt. It always runs on
// the Loop's thread during RunUntil dispatch.
func (t *Task) onComplete(r backend.Result) {
	if t.hasEvent {
		t.l.EventDealloc(t.evRef)
		t.hasEvent = false
	}
	if r.Kind == errs.ECANCELED {
		t.state = StateCanceled
	} else {
		t.state = StateExecuted
	}
	if t.cb != nil {
		t.cb()
	}
}
