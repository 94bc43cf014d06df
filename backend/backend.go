// Package backend is the thin, uniform wrapper over IOCP / kqueue /
// io_uring that spec.md §4.6 requires: init, run_until, submit, cancel,
// term, identical in shape regardless of which platform facility is
// compiled in. Exactly one concrete implementation is linked per build,
// selected by Go build tags (backend_linux_epoll.go, backend_linux_uring.go
// under the io_uring tag, backend_bsd_kqueue.go, backend_windows_iocp.go,
// backend_stub.go for everything else) — platform selection stays
// external to callers, per spec.md §6.
//
// Grounded on the teacher's reactor package (reactor/epoll_reactor.go,
// reactor/iocp_reactor.go), generalized from a readiness-only WebSocket
// poller into the fuller submit/cancel/timer contract this core needs.
package backend

import (
	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
)

// Event is the per-operation control block the Loop hands to a Backend.
// It carries the completion callback and, once Submit has run, a
// platform-specific submission record (OVERLAPPED / kevent / uring
// sqe-mirror) opaque to everyone but the concrete Backend that set it.
type Event struct {
	Callback func(Result)
	Rec      any
}

// Result is what a completed operation reports back to its Event's
// callback. Kind == errs.OK on success.
type Result struct {
	N    int
	Kind errs.Kind
	From Sockaddr // populated for UDP recv completions
}

// Backend is the uniform contract of spec.md §4.6.
type Backend interface {
	// Init opens the completion port / kqueue / ring and any required
	// registered buffers or polling descriptors.
	Init() errs.Kind

	// RunUntil blocks waiting for completions. deadline may be nil,
	// meaning block until any completion arrives. onNow is invoked with
	// the refreshed timestamp exactly once, after the wait and before any
	// completion or timer callback is dispatched; cancellations deferred
	// by an earlier Cancel are dispatched at the start of the call, before
	// the wait and before onNow. Returns OK, or a latched backend error.
	RunUntil(deadline *clock.Time, onNow func(clock.Time)) errs.Kind

	// Submit appends one operation for ev. Never blocks except to wake
	// the backend if it is idle in kernel.
	Submit(ev *Event, op Op) errs.Kind

	// Cancel is best-effort; when the platform exposes no cancellation,
	// the backend marks ev so its callback later fires with ECANCELED.
	Cancel(ev *Event) errs.Kind

	// Term discards outstanding submissions without invoking their
	// callbacks (the Loop's slab teardown fires ECANCELED for every live
	// event before calling Term), then releases backend resources. Never
	// fails; at most reports one latched kind.
	Term() errs.Kind
}

// New constructs the Backend compiled in for this build (exactly one
// platform implementation is linked per GOOS/build-tag combination).
func New() (Backend, errs.Kind) {
	return newPlatformBackend()
}
