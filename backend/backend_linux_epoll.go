//go:build linux && !io_uring

package backend

import (
	"syscall"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/internal/logging"
)

// epollBackend is the default Linux backend: readiness-based dispatch via
// epoll, grounded directly on the teacher's reactor/epoll_reactor.go
// (EpollCreate1/EpollCtl/EpollWait), generalized from a plain
// read/write-readiness callback into spec.md §4.6's fuller submit/cancel
// contract — every Op is translated into "watch this fd for readiness,
// then perform the syscall and complete" instead of only forwarding the
// raw readiness event to the caller.
type epollBackend struct {
	epfd     int
	watchers map[int]*watcher
	timers   []*timerEntry
	canceled []*Event
	pending  errs.Kind
	log      *logging.Logger
}

func newPlatformBackend() (Backend, errs.Kind) {
	return &epollBackend{watchers: make(map[int]*watcher)}, errs.OK
}

func (b *epollBackend) Init() errs.Kind {
	fd, err := syscall.EpollCreate1(0)
	if err != nil {
		return errs.EIO
	}
	b.epfd = fd
	b.log = logging.Default()
	return errs.OK
}

func (b *epollBackend) Submit(ev *Event, op Op) errs.Kind {
	switch o := op.(type) {
	case TimerOp:
		b.timers = append(b.timers, &timerEntry{ev: ev, baseline: o.Baseline})
		return errs.OK
	case TCPAcceptOp:
		return b.watch(o.ListenFD, syscall.EPOLLIN, ev, op)
	case TCPConnectOp:
		return b.watch(o.FD, syscall.EPOLLOUT, ev, op)
	case TCPReadOp:
		return b.watch(o.FD, syscall.EPOLLIN, ev, op)
	case TCPWriteOp:
		return b.watch(o.FD, syscall.EPOLLOUT, ev, op)
	case UDPRecvOp:
		return b.watch(o.FD, syscall.EPOLLIN, ev, op)
	case UDPSendOp:
		return b.watch(o.FD, syscall.EPOLLOUT, ev, op)
	case TCPShutdownOp:
		if err := syscall.Shutdown(o.FD, syscall.SHUT_WR); err != nil {
			b.complete(ev, Result{Kind: errs.EIO})
			return errs.OK
		}
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPCloseOp:
		syscall.Close(o.FD)
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPListenOp:
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	default:
		return errs.EINVAL
	}
}

func (b *epollBackend) watch(fd int, events uint32, ev *Event, op Op) errs.Kind {
	w := &watcher{fd: fd, ev: ev, op: op, events: events}
	epEv := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	if _, exists := b.watchers[fd]; exists {
		if err := syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_MOD, fd, &epEv); err != nil {
			return errs.EIO
		}
	} else {
		if err := syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_ADD, fd, &epEv); err != nil {
			return errs.EIO
		}
	}
	b.watchers[fd] = w
	return errs.OK
}

// Cancel never fires ev's callback inline (spec.md §5): an fd watch is
// torn down immediately, but completion is deferred to the next
// RunUntil iteration's dispatch step, exactly like an already-due timer.
func (b *epollBackend) Cancel(ev *Event) errs.Kind {
	for fd, w := range b.watchers {
		if w.ev == ev {
			syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
			delete(b.watchers, fd)
			b.canceled = append(b.canceled, ev)
			return errs.OK
		}
	}
	for _, t := range b.timers {
		if t.ev == ev && !t.canceled {
			t.canceled = true
			return errs.OK
		}
	}
	return errs.EINVAL
}

func (b *epollBackend) complete(ev *Event, res Result) {
	if ev.Callback != nil {
		ev.Callback(res)
	}
}

// RunUntil waits for the earlier of deadline and the next timer, then
// dispatches whatever completed. Submission failures observed mid-poll
// are latched via the pending field and surfaced on the next call.
func (b *epollBackend) RunUntil(deadline *clock.Time, onNow func(clock.Time)) errs.Kind {
	if b.pending != errs.OK {
		k := b.pending
		b.pending = errs.OK
		return k
	}

	if len(b.canceled) > 0 {
		pending := b.canceled
		b.canceled = nil
		for _, ev := range pending {
			b.complete(ev, Result{Kind: errs.ECANCELED})
		}
	}

	now := clock.Now()
	waitDeadline := deadline
	if nextTimer, ok := b.nextTimerDeadline(); ok {
		if waitDeadline == nil || nextTimer < *waitDeadline {
			waitDeadline = &nextTimer
		}
	}

	timeoutMs := -1
	if waitDeadline != nil {
		if *waitDeadline <= now {
			timeoutMs = 0
		} else {
			d, _ := clock.Sub(*waitDeadline, now)
			timeoutMs = int(d / clock.Millisecond)
			if timeoutMs == 0 {
				timeoutMs = 1
			}
		}
	}

	events := make([]syscall.EpollEvent, 128)
	n, err := syscall.EpollWait(b.epfd, events, timeoutMs)
	now = clock.Now()
	onNow(now)

	b.fireDueTimers(now)

	if err != nil && err != syscall.EINTR {
		return errs.EIO
	}
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		w, ok := b.watchers[fd]
		if !ok {
			continue
		}
		delete(b.watchers, fd)
		syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
		b.dispatch(w, events[i].Events)
	}
	return errs.OK
}

func (b *epollBackend) nextTimerDeadline() (clock.Time, bool) {
	var best clock.Time
	found := false
	for _, t := range b.timers {
		if t.canceled {
			continue
		}
		if !found || t.baseline < best {
			best = t.baseline
			found = true
		}
	}
	return best, found
}

func (b *epollBackend) fireDueTimers(now clock.Time) {
	remaining := b.timers[:0]
	for _, t := range b.timers {
		if t.canceled {
			b.complete(t.ev, Result{Kind: errs.ECANCELED})
			continue
		}
		if t.baseline <= now {
			b.complete(t.ev, Result{Kind: errs.OK})
			continue
		}
		remaining = append(remaining, t)
	}
	b.timers = remaining
}

func (b *epollBackend) dispatch(w *watcher, mask uint32) {
	if mask&(syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
		b.complete(w.ev, Result{Kind: errs.EIO})
		return
	}
	switch o := w.op.(type) {
	case TCPAcceptOp:
		fd, _, err := syscall.Accept(o.ListenFD)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EAGAIN})
			return
		}
		b.complete(w.ev, Result{N: fd, Kind: errs.OK})
	case TCPConnectOp:
		errno, _ := syscall.GetsockoptInt(o.FD, syscall.SOL_SOCKET, syscall.SO_ERROR)
		if errno != 0 {
			b.complete(w.ev, Result{Kind: errs.ECONNREFUSED})
			return
		}
		b.complete(w.ev, Result{Kind: errs.OK})
	case TCPReadOp:
		n, err := syscall.Read(o.FD, o.Buf)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		if n == 0 {
			b.complete(w.ev, Result{Kind: errs.EEOF})
			return
		}
		b.complete(w.ev, Result{N: n, Kind: errs.OK})
	case TCPWriteOp:
		n, err := syscall.Write(o.FD, o.Buf)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: n, Kind: errs.OK})
	case UDPRecvOp:
		n, from, err := syscall.Recvfrom(o.FD, o.Buf, 0)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: n, Kind: errs.OK, From: sockaddrFromSyscall(from)})
	case UDPSendOp:
		sa := toSyscallSockaddr(o.Addr)
		if err := syscall.Sendto(o.FD, o.Buf, 0, sa); err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: len(o.Buf), Kind: errs.OK})
	}
}

// Term releases backend resources only. Firing ECANCELED for whatever was
// still outstanding is the Loop's job (slab teardown, spec.md §4.7) — by
// the time Term runs, every live event's callback has already been
// invoked exactly once from there, so this must not invoke any again.
func (b *epollBackend) Term() errs.Kind {
	for fd := range b.watchers {
		syscall.EpollCtl(b.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
	}
	b.watchers = nil
	b.timers = nil
	b.canceled = nil
	syscall.Close(b.epfd)
	return errs.OK
}

func sockaddrFromSyscall(sa syscall.Sockaddr) Sockaddr {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return NewSockaddr(a.Addr[:], uint16(a.Port))
	case *syscall.SockaddrInet6:
		return NewSockaddr(a.Addr[:], uint16(a.Port))
	default:
		return Sockaddr{}
	}
}

func toSyscallSockaddr(addr Sockaddr) syscall.Sockaddr {
	if addr.Family() == FamilyINET6 {
		sa := &syscall.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.IP().To16())
		return sa
	}
	sa := &syscall.SockaddrInet4{Port: int(addr.Port())}
	copy(sa.Addr[:], addr.IP().To4())
	return sa
}
