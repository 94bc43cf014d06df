// Package loop is the single-threaded cooperative event loop of spec.md
// §4.7, grounded on the teacher's core/concurrency/eventloop.go (batching,
// quit/done flags, Stats()) but generalized from a channel-fed multi-goroutine
// poller into the explicit Initial/Running/Stopping/Stopped/Terminating/
// Terminated state machine the spec requires, driven entirely by one
// backend.Backend on the calling goroutine.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package loop

import (
	"github.com/momentics/aioloop/affinity"
	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/internal/logging"
	"github.com/momentics/aioloop/mem"
)

// State is the Loop's lifecycle stage, spec.md §4.7.
type State int32

const (
	StateInitial State = iota
	StateRunning
	StateStopping
	StateStopped
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// EventRef identifies one allocated event block; returned by EventAlloc,
// consumed by EventDealloc.
type EventRef = mem.SlotRef

// Config is the Loop's one-shot, constructor-only configuration —
// spec.md §6 rules out config files and environment variables, so every
// field here is set by the caller before New returns.
type Config struct {
	// PinToCPU, if set, pins the thread that first calls RunUntil to this
	// logical CPU before entering the poll loop. Adapted from the
	// teacher's affinity package; scheduling hygiene for the loop's one
	// thread, not a threading model.
	PinToCPU *int

	// EventBankSlots sizes the event control-block slab's banks. Zero
	// picks mem's default.
	EventBankSlots int
}

// Stats is a point-in-time snapshot for observability, mirroring the
// teacher's pervasive Stats() methods (api.Control.Stats et al.).
type Stats struct {
	State      State
	EventsLive int
	LatchedErr errs.Kind
}

// Loop is the asynchronous core: one backend, one event-block slab, one
// latched pending error. Never share a Loop across goroutines.
type Loop struct {
	state   State
	be      backend.Backend
	events  *mem.TypedSlab[backend.Event]
	now     clock.Time
	pending errs.Kind
	cfg     Config
	pinned  bool
	log     *logging.Logger
}

// New constructs a Loop with the platform backend compiled into this
// build. The backend is not opened until the first RunUntil call.
func New(cfg Config) (*Loop, errs.Kind) {
	be, k := backend.New()
	if k != errs.OK {
		return nil, k
	}
	return NewWithBackend(be, cfg), errs.OK
}

// NewWithBackend is the injection seam tests use to drive the state
// machine against a fake backend instead of a real OS facility.
func NewWithBackend(be backend.Backend, cfg Config) *Loop {
	return &Loop{
		state:  StateInitial,
		be:     be,
		events: mem.NewTypedSlab[backend.Event](cfg.EventBankSlots),
		cfg:    cfg,
		log:    logging.Default(),
	}
}

// State returns the current lifecycle stage.
func (l *Loop) State() State { return l.state }

// Now returns the timestamp refreshed by the most recent backend
// RunUntil call (or the zero value before the first one).
func (l *Loop) Now() clock.Time { return l.now }

// Stats returns a point-in-time snapshot.
func (l *Loop) Stats() Stats {
	live := l.events.RefCount() - 1
	if live < 0 {
		live = 0
	}
	return Stats{State: l.state, EventsLive: live, LatchedErr: l.pending}
}

// EventAlloc reserves one event control block and wires cb as its
// completion callback. Refuses once the loop is in or past Terminating.
func (l *Loop) EventAlloc(cb func(backend.Result)) (*backend.Event, EventRef, errs.Kind) {
	if l.state == StateTerminating || l.state == StateTerminated {
		return nil, EventRef{}, errs.ESTATE
	}
	ev, ref, k := l.events.Alloc()
	if k != errs.OK {
		return nil, EventRef{}, k
	}
	ev.Callback = cb
	return ev, ref, errs.OK
}

// EventDealloc releases an event control block obtained from EventAlloc.
func (l *Loop) EventDealloc(ref EventRef) errs.Kind {
	return l.events.Free(ref)
}

// Submit forwards one operation to the backend for ev. Thin pass-through
// kept on Loop (rather than requiring task/transport to hold a
// backend.Backend reference directly) so every caller's only handle to
// I/O is the Loop itself, matching spec.md §9's back-pointer guidance.
func (l *Loop) Submit(ev *backend.Event, op backend.Op) errs.Kind {
	return l.be.Submit(ev, op)
}

// Cancel forwards best-effort cancellation to the backend for ev.
func (l *Loop) Cancel(ev *backend.Event) errs.Kind {
	return l.be.Cancel(ev)
}

// PendingErrSet latches k. Succeeds as a no-op if k is OK; fails with
// EALREADY if a different error is already latched — this is the only
// failure mode for the set half of the latch.
func (l *Loop) PendingErrSet(k errs.Kind) errs.Kind {
	if k == errs.OK {
		return errs.OK
	}
	if l.pending != errs.OK && l.pending != k {
		return errs.EALREADY
	}
	l.pending = k
	return errs.OK
}

// PendingErrTake reads and clears the latch.
func (l *Loop) PendingErrTake() errs.Kind {
	k := l.pending
	l.pending = errs.OK
	return k
}

// Stop requests a transition out of Running at the end of the current
// iteration. Valid only from Running; callers may invoke it from within
// a callback since dispatch is single-threaded cooperative.
func (l *Loop) Stop() errs.Kind {
	if l.state != StateRunning {
		return errs.ESTATE
	}
	l.state = StateStopping
	return errs.OK
}

// Term requests teardown. From Running it takes effect at the end of the
// current iteration; from Stopped/Stopping it tears down immediately since
// no iteration is in flight. From Initial it moves straight to Terminated
// without a teardown: the backend, never opened, is not released, and the
// event slab is not walked.
func (l *Loop) Term() errs.Kind {
	switch l.state {
	case StateRunning:
		l.state = StateTerminating
		return errs.OK
	case StateInitial:
		l.state = StateTerminated
		return errs.OK
	case StateStopped, StateStopping:
		l.teardown()
		l.state = StateTerminated
		return errs.OK
	default:
		return errs.ESTATE
	}
}

// teardown cancels every live event block, invoking each callback with
// ECANCELED, then releases the backend. Never fails; any backend error
// on this last call is latched rather than returned, per spec.md §7.
func (l *Loop) teardown() {
	l.events.Term(func(ev *backend.Event) {
		if ev.Callback != nil {
			ev.Callback(backend.Result{Kind: errs.ECANCELED})
		}
	})
	if k := l.be.Term(); k != errs.OK {
		l.PendingErrSet(k)
	}
}

// RunUntil drives the loop until deadline passes (nil means run until
// Stop/Term), iterating: refresh now, ask the backend to wait for and
// dispatch completions, then check for a requested transition. Requires
// state ∈ {Initial, Stopped}.
func (l *Loop) RunUntil(deadline *clock.Time) errs.Kind {
	if l.state != StateInitial && l.state != StateStopped {
		return errs.ESTATE
	}

	if l.state == StateInitial {
		if k := l.be.Init(); k != errs.OK {
			return k
		}
		if l.cfg.PinToCPU != nil && !l.pinned {
			if k := affinity.Pin(*l.cfg.PinToCPU); k != errs.OK {
				l.log.Warn("loop: affinity pin failed", "kind", k.String())
			}
			l.pinned = true
		}
	}
	l.state = StateRunning

	for {
		k := l.be.RunUntil(deadline, func(t clock.Time) { l.now = t })
		if k != errs.OK {
			l.PendingErrSet(k)
			l.state = StateStopped
			return l.PendingErrTake()
		}

		switch l.state {
		case StateTerminating:
			l.teardown()
			l.state = StateTerminated
			return errs.OK
		case StateStopping:
			l.state = StateStopped
			return errs.OK
		case StateRunning:
			if deadline != nil && !clock.IsBefore(l.now, *deadline) {
				l.state = StateStopped
				return errs.OK
			}
		default:
			return errs.EINTERN
		}
	}
}
