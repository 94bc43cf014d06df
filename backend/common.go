package backend

import "github.com/momentics/aioloop/clock"

// watcher is the per-fd bookkeeping type of the readiness-based backends
// (epoll, kqueue); the IOCP and io_uring backends track pending I/O with
// their own completion-based bookkeeping instead. timerEntry is shared by
// all four backends' timer lists.
type watcher struct {
	fd     int
	ev     *Event
	op     Op
	events uint32
}

type timerEntry struct {
	ev       *Event
	baseline clock.Time
	canceled bool
}
