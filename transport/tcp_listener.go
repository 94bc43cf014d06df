package transport

import (
	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

const defaultBacklog = 128

// tcpListener is the base listener vtable implementation, ctx = the
// owning Loop.
type tcpListener struct {
	l     *loop.Loop
	fd    int
	state ListenerState
	addr  Sockaddr

	onAccept func(Conn)

	acceptEv  *backend.Event
	acceptRef loop.EventRef
}

// NewTCPTransport constructs the base TCP listener bound to l.
func NewTCPTransport(l *loop.Loop) Listener {
	return &tcpListener{l: l, fd: -1, state: ListenerClosed}
}

func (t *tcpListener) State() ListenerState { return t.state }
func (t *tcpListener) Addr() Sockaddr       { return t.addr }

func (t *tcpListener) OnAccept(cb func(Conn)) { t.onAccept = cb }

// Open creates the underlying non-blocking listening socket.
func (t *tcpListener) Open() errs.Kind {
	if t.state != ListenerClosed {
		return errs.ESTATE
	}
	fd, k := newNonblockingSocket(Sockaddr{})
	if k != errs.OK {
		return k
	}
	t.fd = fd
	t.state = ListenerOpen
	return errs.OK
}

// Listen binds addr, begins listening, and arms the accept pump. Binding
// to port 0 lets the OS pick a port; Addr() reports the bound address
// once this returns OK.
func (t *tcpListener) Listen(addr Sockaddr) errs.Kind {
	if t.state != ListenerOpen {
		return errs.ESTATE
	}
	if k := bindListen(t.fd, addr, defaultBacklog); k != errs.OK {
		return k
	}
	bound, k := localAddr(t.fd)
	if k == errs.OK {
		t.addr = bound
	} else {
		t.addr = addr
	}

	ev, _, k := t.l.EventAlloc(func(r backend.Result) {})
	if k != errs.OK {
		return k
	}
	if k := t.l.Submit(ev, backend.TCPListenOp{FD: t.fd}); k != errs.OK {
		return k
	}
	t.state = ListenerListening
	return t.armAccept()
}

func (t *tcpListener) armAccept() errs.Kind {
	ev, ref, k := t.l.EventAlloc(t.onAcceptComplete)
	if k != errs.OK {
		return k
	}
	t.acceptEv = ev
	t.acceptRef = ref
	return t.l.Submit(ev, backend.TCPAcceptOp{ListenFD: t.fd})
}

func (t *tcpListener) onAcceptComplete(r backend.Result) {
	t.l.EventDealloc(t.acceptRef)
	t.acceptEv = nil

	if r.Kind == errs.OK {
		conn := newAcceptedConn(t.l, r.N)
		if t.onAccept != nil {
			t.onAccept(conn)
		}
	}
	if t.state == ListenerListening {
		t.armAccept()
	}
}

// Close cancels the outstanding accept, if any (best-effort: its callback
// observes ECANCELED on a later RunUntil or at Loop teardown, never
// inline), then closes the listening socket.
func (t *tcpListener) Close() errs.Kind {
	if t.fd < 0 {
		return errs.ESTATE
	}
	t.state = ListenerClosed
	if t.acceptEv != nil {
		t.l.Cancel(t.acceptEv)
	}
	var ref loop.EventRef
	ev, ref, k := t.l.EventAlloc(func(r backend.Result) {
		t.l.EventDealloc(ref)
	})
	if k != errs.OK {
		return k
	}
	fd := t.fd
	t.fd = -1
	return t.l.Submit(ev, backend.TCPCloseOp{FD: fd})
}
