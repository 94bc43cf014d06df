package transport

import (
	"github.com/eapache/queue"

	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

const defaultUDPRecvBufSize = 65507

// sendMsg is one queued outbound datagram. The queue is non-owning —
// Buf lives in caller storage and must stay valid until the send
// completes, per spec.md §6.
type sendMsg struct {
	buf  []byte
	addr Sockaddr
}

// sendQueue is the tail-enqueue/head-drain queue of spec.md §4.9's UDP
// send path, backed by eapache/queue's ring buffer rather than a
// hand-rolled linked list.
type sendQueue struct {
	q *queue.Queue
}

// isEmptyThenAdd appends m and reports whether the queue was empty
// before the push — the fast-path signal telling the caller whether to
// kick the backend (scenario S4).
func (sq *sendQueue) isEmptyThenAdd(m *sendMsg) bool {
	if sq.q == nil {
		sq.q = queue.New()
	}
	wasEmpty := sq.q.Length() == 0
	sq.q.Add(m)
	return wasEmpty
}

func (sq *sendQueue) popHead() *sendMsg {
	if sq.q == nil || sq.q.Length() == 0 {
		return nil
	}
	return sq.q.Remove().(*sendMsg)
}

func (sq *sendQueue) peekHead() *sendMsg {
	if sq.q == nil || sq.q.Length() == 0 {
		return nil
	}
	return sq.q.Peek().(*sendMsg)
}

// udpSocket is the base UDP vtable implementation, ctx = the owning Loop.
type udpSocket struct {
	l     *loop.Loop
	fd    int
	state UDPState

	queue sendQueue
	draining bool

	recvBuf []byte

	onRecv func([]byte, Sockaddr, errs.Kind)
	onSend func(errs.Kind)

	recvEv  *backend.Event
	recvRef loop.EventRef
}

// NewUDPTransport constructs the base UDP socket bound to l.
func NewUDPTransport(l *loop.Loop) UDPSocket {
	return &udpSocket{l: l, fd: -1, state: UDPClosed}
}

func (u *udpSocket) State() UDPState { return u.state }

func (u *udpSocket) OnRecv(cb func([]byte, Sockaddr, errs.Kind)) { u.onRecv = cb }
func (u *udpSocket) OnSend(cb func(errs.Kind))                   { u.onSend = cb }

// Open creates and binds the underlying non-blocking UDP socket.
func (u *udpSocket) Open() errs.Kind {
	if u.state != UDPClosed {
		return errs.ESTATE
	}
	fd, k := newNonblockingUDPSocket(Sockaddr{})
	if k != errs.OK {
		return k
	}
	if k := bindUDP(fd, Sockaddr{}); k != errs.OK {
		closeFD(fd)
		return k
	}
	u.fd = fd
	u.state = UDPOpen
	return errs.OK
}

// RecvStart arms a repeating receive pump, mirroring tcpConn.ReadStart.
func (u *udpSocket) RecvStart() errs.Kind {
	if u.state != UDPOpen && u.state != UDPReceiving {
		return errs.ESTATE
	}
	if u.recvBuf == nil {
		u.recvBuf = udpRecvBufPool.Get()
	}
	u.state = UDPReceiving
	return u.armRecv()
}

func (u *udpSocket) armRecv() errs.Kind {
	ev, ref, k := u.l.EventAlloc(u.onRecvComplete)
	if k != errs.OK {
		return k
	}
	u.recvEv = ev
	u.recvRef = ref
	return u.l.Submit(ev, backend.UDPRecvOp{FD: u.fd, Buf: u.recvBuf})
}

func (u *udpSocket) onRecvComplete(r backend.Result) {
	u.l.EventDealloc(u.recvRef)
	u.recvEv = nil

	if u.onRecv != nil {
		u.onRecv(u.recvBuf[:max0(r.N)], r.From, r.Kind)
	}
	if u.state == UDPReceiving {
		u.armRecv()
	}
}

// RecvStop halts the receive pump; sends remain allowed per spec.md
// §4.9's socket-state table.
func (u *udpSocket) RecvStop() errs.Kind {
	if u.state != UDPReceiving {
		return errs.ESTATE
	}
	u.state = UDPOpen
	if u.recvEv != nil {
		return u.l.Cancel(u.recvEv)
	}
	return errs.OK
}

// Send enqueues buf for addr. If the queue was empty, it submits
// immediately; otherwise the message waits for the current send to
// complete and drain the next head.
func (u *udpSocket) Send(buf []byte, addr Sockaddr) errs.Kind {
	if u.state == UDPClosed {
		return errs.ESTATE
	}
	wasEmpty := u.queue.isEmptyThenAdd(&sendMsg{buf: buf, addr: addr})
	if wasEmpty && !u.draining {
		return u.kickSend()
	}
	return errs.OK
}

func (u *udpSocket) kickSend() errs.Kind {
	m := u.queue.peekHead()
	if m == nil {
		u.draining = false
		return errs.OK
	}
	u.draining = true
	var ref loop.EventRef
	ev, ref, k := u.l.EventAlloc(func(r backend.Result) {
		u.l.EventDealloc(ref)
		u.queue.popHead()
		if u.onSend != nil {
			u.onSend(r.Kind)
		}
		u.kickSend()
	})
	if k != errs.OK {
		u.draining = false
		return k
	}
	return u.l.Submit(ev, backend.UDPSendOp{FD: u.fd, Buf: m.buf, Addr: m.addr})
}

// Close closes the socket.
func (u *udpSocket) Close() errs.Kind {
	if u.fd < 0 {
		return errs.ESTATE
	}
	u.state = UDPClosed
	if u.recvEv != nil {
		u.l.Cancel(u.recvEv)
	}
	if u.recvBuf != nil {
		udpRecvBufPool.Put(u.recvBuf)
		u.recvBuf = nil
	}
	var ref loop.EventRef
	ev, ref, k := u.l.EventAlloc(func(r backend.Result) {
		u.l.EventDealloc(ref)
	})
	if k != errs.OK {
		return k
	}
	fd := u.fd
	u.fd = -1
	return u.l.Submit(ev, backend.TCPCloseOp{FD: fd})
}
