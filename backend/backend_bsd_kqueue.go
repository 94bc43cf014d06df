//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package backend

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/internal/logging"
)

// kqueueBackend is the BSD/macOS backend, the same readiness-then-syscall
// shape as backend_linux_epoll.go but driven by kqueue/kevent via
// golang.org/x/sys/unix (the teacher only ships an epoll and an IOCP
// reactor; kqueue is filled in from the same shape per the "enrich from
// the rest of the pack" mandate, since golang.org/x/sys already covers
// kqueue identically to how the teacher uses it for epoll).
type kqueueBackend struct {
	kq       int
	watchers map[int]*watcher
	timers   []*timerEntry
	canceled []*Event
	pending  errs.Kind
	log      *logging.Logger
}

func newPlatformBackend() (Backend, errs.Kind) {
	return &kqueueBackend{watchers: make(map[int]*watcher)}, errs.OK
}

func (b *kqueueBackend) Init() errs.Kind {
	kq, err := unix.Kqueue()
	if err != nil {
		return errs.EIO
	}
	b.kq = kq
	b.log = logging.Default()
	return errs.OK
}

func (b *kqueueBackend) Submit(ev *Event, op Op) errs.Kind {
	switch o := op.(type) {
	case TimerOp:
		b.timers = append(b.timers, &timerEntry{ev: ev, baseline: o.Baseline})
		return errs.OK
	case TCPAcceptOp:
		return b.watch(o.ListenFD, unix.EVFILT_READ, ev, op)
	case TCPConnectOp:
		return b.watch(o.FD, unix.EVFILT_WRITE, ev, op)
	case TCPReadOp:
		return b.watch(o.FD, unix.EVFILT_READ, ev, op)
	case TCPWriteOp:
		return b.watch(o.FD, unix.EVFILT_WRITE, ev, op)
	case UDPRecvOp:
		return b.watch(o.FD, unix.EVFILT_READ, ev, op)
	case UDPSendOp:
		return b.watch(o.FD, unix.EVFILT_WRITE, ev, op)
	case TCPShutdownOp:
		unix.Shutdown(o.FD, unix.SHUT_WR)
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPCloseOp:
		unix.Close(o.FD)
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPListenOp:
		b.complete(ev, Result{Kind: errs.OK})
		return errs.OK
	default:
		return errs.EINVAL
	}
}

func (b *kqueueBackend) watch(fd int, filter int16, ev *Event, op Op) errs.Kind {
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: unix.EV_ADD | unix.EV_ONESHOT}
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		return errs.EIO
	}
	b.watchers[fd] = &watcher{fd: fd, ev: ev, op: op}
	return errs.OK
}

// Cancel never fires ev's callback inline (spec.md §5): an fd watch is
// torn down immediately, but completion is deferred to the next
// RunUntil iteration's dispatch step, exactly like an already-due timer.
func (b *kqueueBackend) Cancel(ev *Event) errs.Kind {
	for fd, w := range b.watchers {
		if w.ev == ev {
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

func (b *kqueueBackend) complete(ev *Event, res Result) {
	if ev.Callback != nil {
		ev.Callback(res)
	}
}

func (b *kqueueBackend) RunUntil(deadline *clock.Time, onNow func(clock.Time)) errs.Kind {
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

	var ts *unix.Timespec
	if waitDeadline != nil {
		d, _ := clock.Sub(*waitDeadline, now)
		if d < 0 {
			d = 0
		}
		spec := unix.NsecToTimespec(int64(d))
		ts = &spec
	}

	events := make([]unix.Kevent_t, 128)
	n, err := unix.Kevent(b.kq, nil, events, ts)
	now = clock.Now()
	onNow(now)

	b.fireDueTimers(now)

	if err != nil && err != unix.EINTR {
		return errs.EIO
	}
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		w, ok := b.watchers[fd]
		if !ok {
			continue
		}
		delete(b.watchers, fd)
		b.dispatch(w, events[i].Flags)
	}
	return errs.OK
}

func (b *kqueueBackend) nextTimerDeadline() (clock.Time, bool) {
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

func (b *kqueueBackend) fireDueTimers(now clock.Time) {
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

func (b *kqueueBackend) dispatch(w *watcher, flags uint16) {
	if flags&unix.EV_ERROR != 0 {
		b.complete(w.ev, Result{Kind: errs.EIO})
		return
	}
	switch o := w.op.(type) {
	case TCPAcceptOp:
		fd, _, err := unix.Accept(o.ListenFD)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EAGAIN})
			return
		}
		b.complete(w.ev, Result{N: fd, Kind: errs.OK})
	case TCPConnectOp:
		errno, _ := unix.GetsockoptInt(o.FD, unix.SOL_SOCKET, unix.SO_ERROR)
		if errno != 0 {
			b.complete(w.ev, Result{Kind: errs.ECONNREFUSED})
			return
		}
		b.complete(w.ev, Result{Kind: errs.OK})
	case TCPReadOp:
		n, err := unix.Read(o.FD, o.Buf)
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
		n, err := unix.Write(o.FD, o.Buf)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: n, Kind: errs.OK})
	case UDPRecvOp:
		n, from, err := unix.Recvfrom(o.FD, o.Buf, 0)
		if err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: n, Kind: errs.OK, From: sockaddrFromUnix(from)})
	case UDPSendOp:
		sa := toUnixSockaddr(o.Addr)
		if err := unix.Sendto(o.FD, o.Buf, 0, sa); err != nil {
			b.complete(w.ev, Result{Kind: errs.EIO})
			return
		}
		b.complete(w.ev, Result{N: len(o.Buf), Kind: errs.OK})
	}
}

// Term releases backend resources only; see the epoll backend's Term for
// why it must not invoke any callbacks itself.
func (b *kqueueBackend) Term() errs.Kind {
	b.watchers = nil
	b.timers = nil
	b.canceled = nil
	unix.Close(b.kq)
	return errs.OK
}

func sockaddrFromUnix(sa unix.Sockaddr) Sockaddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return NewSockaddr(a.Addr[:], uint16(a.Port))
	case *unix.SockaddrInet6:
		return NewSockaddr(a.Addr[:], uint16(a.Port))
	default:
		return Sockaddr{}
	}
}

func toUnixSockaddr(addr Sockaddr) unix.Sockaddr {
	if addr.Family() == FamilyINET6 {
		sa := &unix.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.IP().To16())
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port())}
	copy(sa.Addr[:], addr.IP().To4())
	return sa
}
