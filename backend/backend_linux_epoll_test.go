//go:build linux && !io_uring

package backend

import (
	"syscall"
	"testing"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
)

// TestEpollCancelDefersCallback exercises the real epoll backend's Cancel
// against an in-flight fd watch (spec.md §5): the callback must not fire
// synchronously inside Cancel, only later from RunUntil's dispatch step.
func TestEpollCancelDefersCallback(t *testing.T) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	b, k := newPlatformBackend()
	if k != errs.OK {
		t.Fatalf("newPlatformBackend: %v", k)
	}
	if k := b.Init(); k != errs.OK {
		t.Fatalf("Init: %v", k)
	}
	defer b.Term()

	fired := false
	var gotKind errs.Kind
	ev := &Event{Callback: func(r Result) {
		fired = true
		gotKind = r.Kind
	}}

	buf := make([]byte, 16)
	if k := b.Submit(ev, TCPReadOp{FD: fds[0], Buf: buf}); k != errs.OK {
		t.Fatalf("Submit: %v", k)
	}

	if k := b.Cancel(ev); k != errs.OK {
		t.Fatalf("Cancel: %v", k)
	}
	if fired {
		t.Fatal("Cancel must not invoke the callback inline")
	}

	deadline, dk := clock.Add(clock.Now(), 10*clock.Millisecond)
	if dk != errs.OK {
		t.Fatalf("clock.Add: %v", dk)
	}
	if k := b.RunUntil(&deadline, func(clock.Time) {}); k != errs.OK {
		t.Fatalf("RunUntil: %v", k)
	}
	if !fired {
		t.Fatal("RunUntil must dispatch the deferred cancellation")
	}
	if gotKind != errs.ECANCELED {
		t.Fatalf("got kind %v, want ECANCELED", gotKind)
	}
}
