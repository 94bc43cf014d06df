package transport

import (
	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

const defaultReadBufSize = 4096

// tcpConn is the base per-connection vtable implementation, ctx = the
// owning Loop (spec.md §4.9: "the base TCP/UDP implementation's ctx is
// the Loop itself"). Built from an already-open non-blocking fd, either
// one this package dialed (Connect) or one a Listener accepted.
type tcpConn struct {
	l     *loop.Loop
	fd    int
	state ConnState

	readBuf []byte

	onConnect func(errs.Kind)
	onRead    func([]byte, errs.Kind)
	onWrite   func(errs.Kind)
	onClose   func(errs.Kind)

	readEv  *backend.Event
	readRef loop.EventRef
}

// newAcceptedConn wraps an fd a Listener just accepted. State starts
// Connected since the handshake already happened at the OS level.
func newAcceptedConn(l *loop.Loop, fd int) *tcpConn {
	return &tcpConn{l: l, fd: fd, state: ConnConnected}
}

// NewTCPConn creates an unopened client-side connection bound to l.
func NewTCPConn(l *loop.Loop) Conn {
	return &tcpConn{l: l, fd: -1, state: ConnClosed}
}

func (c *tcpConn) FD() int          { return c.fd }
func (c *tcpConn) State() ConnState { return c.state }

func (c *tcpConn) OnConnect(cb func(errs.Kind))          { c.onConnect = cb }
func (c *tcpConn) OnRead(cb func([]byte, errs.Kind))     { c.onRead = cb }
func (c *tcpConn) OnWrite(cb func(errs.Kind))            { c.onWrite = cb }
func (c *tcpConn) OnClose(cb func(errs.Kind))            { c.onClose = cb }

// Open creates the underlying non-blocking socket without connecting it.
func (c *tcpConn) Open() errs.Kind {
	if c.state != ConnClosed {
		return errs.ESTATE
	}
	fd, k := newNonblockingSocket(Sockaddr{})
	if k != errs.OK {
		return k
	}
	c.fd = fd
	c.state = ConnOpen
	return errs.OK
}

// Connect submits an asynchronous connect; OnConnect fires on completion.
func (c *tcpConn) Connect(addr Sockaddr) errs.Kind {
	if c.state != ConnOpen {
		return errs.ESTATE
	}
	inProgress, k := connectNonblocking(c.fd, addr)
	if k != errs.OK {
		return k
	}
	c.state = ConnConnecting

	var ref loop.EventRef
	ev, ref, k := c.l.EventAlloc(func(r backend.Result) {
		c.l.EventDealloc(ref)
		if r.Kind == errs.OK {
			c.state = ConnConnected
		}
		if c.onConnect != nil {
			c.onConnect(r.Kind)
		}
	})
	if k != errs.OK {
		return k
	}
	if !inProgress {
		// Connected synchronously (loopback is common); still dispatched
		// through the same event so OnConnect always fires from the
		// Loop's thread, never inline.
	}
	return c.l.Submit(ev, backend.TCPConnectOp{FD: c.fd, Addr: addr})
}

// ReadStart arms a repeating read: each completion re-submits another
// TCPReadOp until ReadStop, EEOF, or an error stops the pump.
func (c *tcpConn) ReadStart() errs.Kind {
	if c.state != ConnConnected && c.state != ConnReading {
		return errs.ESTATE
	}
	if c.readBuf == nil {
		c.readBuf = tcpReadBufPool.Get()
	}
	c.state = ConnReading

	ev, ref, k := c.l.EventAlloc(c.onReadComplete)
	if k != errs.OK {
		return k
	}
	c.readEv = ev
	c.readRef = ref
	return c.l.Submit(ev, backend.TCPReadOp{FD: c.fd, Buf: c.readBuf})
}

func (c *tcpConn) onReadComplete(r backend.Result) {
	c.l.EventDealloc(c.readRef)
	c.readEv = nil

	if c.onRead != nil {
		c.onRead(c.readBuf[:max0(r.N)], r.Kind)
	}
	if r.Kind != errs.OK {
		c.state = ConnConnected
		return
	}
	if c.state == ConnReading {
		ev, ref, k := c.l.EventAlloc(c.onReadComplete)
		if k != errs.OK {
			return
		}
		c.readEv = ev
		c.readRef = ref
		c.l.Submit(ev, backend.TCPReadOp{FD: c.fd, Buf: c.readBuf})
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ReadStop halts the repeating read pump; best-effort, matching
// spec.md §5's cancellation semantics for in-flight I/O.
func (c *tcpConn) ReadStop() errs.Kind {
	if c.state != ConnReading {
		return errs.ESTATE
	}
	c.state = ConnConnected
	if c.readEv != nil {
		return c.l.Cancel(c.readEv)
	}
	return errs.OK
}

// Write submits one write; buf must stay valid until OnWrite fires.
func (c *tcpConn) Write(buf []byte) errs.Kind {
	if c.state != ConnConnected && c.state != ConnReading {
		return errs.ESTATE
	}
	var ref loop.EventRef
	ev, ref, k := c.l.EventAlloc(func(r backend.Result) {
		c.l.EventDealloc(ref)
		if c.onWrite != nil {
			c.onWrite(r.Kind)
		}
	})
	if k != errs.OK {
		return k
	}
	return c.l.Submit(ev, backend.TCPWriteOp{FD: c.fd, Buf: buf})
}

// Shutdown half-closes the write side.
func (c *tcpConn) Shutdown() errs.Kind {
	if c.fd < 0 {
		return errs.ESTATE
	}
	var ref loop.EventRef
	ev, ref, k := c.l.EventAlloc(func(r backend.Result) {
		c.l.EventDealloc(ref)
		c.state = ConnShutdownState
	})
	if k != errs.OK {
		return k
	}
	return c.l.Submit(ev, backend.TCPShutdownOp{FD: c.fd})
}

// Close closes the socket outright.
func (c *tcpConn) Close() errs.Kind {
	if c.fd < 0 {
		return errs.ESTATE
	}
	var ref loop.EventRef
	ev, ref, k := c.l.EventAlloc(func(r backend.Result) {
		c.l.EventDealloc(ref)
		c.state = ConnClosed
		if c.onClose != nil {
			c.onClose(r.Kind)
		}
	})
	if k != errs.OK {
		return k
	}
	if c.readBuf != nil {
		tcpReadBufPool.Put(c.readBuf)
		c.readBuf = nil
	}
	fd := c.fd
	c.fd = -1
	return c.l.Submit(ev, backend.TCPCloseOp{FD: fd})
}
