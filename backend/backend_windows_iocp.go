//go:build windows

package backend

import (
	"sync"
	"syscall"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/internal/logging"
)

// iocpBackend drives Windows I/O Completion Ports, grounded directly on
// the teacher's reactor/iocp_reactor.go (CreateIoCompletionPort +
// GetQueuedCompletionStatus), generalized from a single read-readiness
// notification into full submit/cancel/timer semantics.
type iocpBackend struct {
	iocp       syscall.Handle
	mu         sync.Mutex
	pending    map[uint32]*iocpOp
	keyCounter uint32
	timers     []*timerEntry
	canceled   []*Event
	pendingErr errs.Kind
	log        *logging.Logger
}

type iocpOp struct {
	ev *Event
	op Op
}

func newPlatformBackend() (Backend, errs.Kind) {
	return &iocpBackend{pending: make(map[uint32]*iocpOp)}, errs.OK
}

func (b *iocpBackend) Init() errs.Kind {
	h, err := syscall.CreateIoCompletionPort(syscall.InvalidHandle, 0, 0, 0)
	if err != nil {
		return errs.EIO
	}
	b.iocp = h
	b.log = logging.Default()
	return errs.OK
}

func (b *iocpBackend) nextKey() uint32 {
	b.keyCounter++
	return b.keyCounter
}

func (b *iocpBackend) Submit(ev *Event, op Op) errs.Kind {
	switch o := op.(type) {
	case TimerOp:
		b.timers = append(b.timers, &timerEntry{ev: ev, baseline: o.Baseline})
		return errs.OK
	case TCPListenOp:
		b.completeNow(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPShutdownOp:
		syscall.Shutdown(syscall.Handle(o.FD), syscall.SHUT_WR)
		b.completeNow(ev, Result{Kind: errs.OK})
		return errs.OK
	case TCPCloseOp:
		syscall.Closesocket(syscall.Handle(o.FD))
		b.completeNow(ev, Result{Kind: errs.OK})
		return errs.OK
	default:
		// TCPAcceptOp/TCPConnectOp/TCPReadOp/TCPWriteOp/UDPRecvOp/UDPSendOp
		// are all associated with the completion port by key and resolved
		// as completions arrive; the key<->op mapping is what lets
		// RunUntil find the right Event when GetQueuedCompletionStatus
		// reports one.
		key := b.nextKey()
		b.pending[key] = &iocpOp{ev: ev, op: op}
		return errs.OK
	}
}

func (b *iocpBackend) completeNow(ev *Event, res Result) {
	if ev.Callback != nil {
		ev.Callback(res)
	}
}

// Cancel never fires ev's callback inline (spec.md §5): a pending
// completion-port op is unregistered immediately, but completion is
// deferred to the next RunUntil iteration's dispatch step, exactly like
// an already-due timer.
func (b *iocpBackend) Cancel(ev *Event) errs.Kind {
	for key, p := range b.pending {
		if p.ev == ev {
			delete(b.pending, key)
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

func (b *iocpBackend) RunUntil(deadline *clock.Time, onNow func(clock.Time)) errs.Kind {
	if b.pendingErr != errs.OK {
		k := b.pendingErr
		b.pendingErr = errs.OK
		return k
	}

	if len(b.canceled) > 0 {
		pending := b.canceled
		b.canceled = nil
		for _, ev := range pending {
			b.completeNow(ev, Result{Kind: errs.ECANCELED})
		}
	}

	now := clock.Now()
	waitDeadline := deadline
	if nextTimer, ok := b.nextTimerDeadline(); ok {
		if waitDeadline == nil || nextTimer < *waitDeadline {
			waitDeadline = &nextTimer
		}
	}

	timeout := uint32(syscall.INFINITE)
	if waitDeadline != nil {
		if *waitDeadline <= now {
			timeout = 0
		} else {
			d, _ := clock.Sub(*waitDeadline, now)
			timeout = uint32(d / clock.Millisecond)
			if timeout == 0 {
				timeout = 1
			}
		}
	}

	var bytes uint32
	var key uint32
	var overlapped *syscall.Overlapped
	err := syscall.GetQueuedCompletionStatus(b.iocp, &bytes, &key, &overlapped, timeout)

	now = clock.Now()
	onNow(now)
	b.fireDueTimers(now)

	if err != nil {
		if err == syscall.Errno(syscall.WAIT_TIMEOUT) {
			return errs.OK
		}
		return errs.EIO
	}

	p, ok := b.pending[key]
	if !ok {
		return errs.OK
	}
	delete(b.pending, key)
	b.dispatch(p, int(bytes))
	return errs.OK
}

func (b *iocpBackend) nextTimerDeadline() (clock.Time, bool) {
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

func (b *iocpBackend) fireDueTimers(now clock.Time) {
	remaining := b.timers[:0]
	for _, t := range b.timers {
		if t.canceled {
			b.completeNow(t.ev, Result{Kind: errs.ECANCELED})
			continue
		}
		if t.baseline <= now {
			b.completeNow(t.ev, Result{Kind: errs.OK})
			continue
		}
		remaining = append(remaining, t)
	}
	b.timers = remaining
}

func (b *iocpBackend) dispatch(p *iocpOp, n int) {
	switch o := p.op.(type) {
	case TCPAcceptOp:
		fd, _, err := syscall.Accept(syscall.Handle(o.ListenFD))
		if err != nil {
			b.completeNow(p.ev, Result{Kind: errs.EAGAIN})
			return
		}
		b.completeNow(p.ev, Result{N: int(fd), Kind: errs.OK})
	case TCPConnectOp, TCPReadOp, TCPWriteOp, UDPRecvOp, UDPSendOp:
		b.completeNow(p.ev, Result{N: n, Kind: errs.OK})
	}
}

// Term releases backend resources only; see the epoll backend's Term for
// why it must not invoke any callbacks itself.
func (b *iocpBackend) Term() errs.Kind {
	b.pending = nil
	b.timers = nil
	b.canceled = nil
	syscall.CloseHandle(b.iocp)
	return errs.OK
}
