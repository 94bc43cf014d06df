package transport

import (
	"net"
	"testing"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

// TestSendQueueFastPath exercises scenario S4 directly against sendQueue:
// enqueuing into an empty queue reports true (kick the backend);
// enqueuing behind an in-flight message reports false; after the head
// drains, the next message becomes the new head.
func TestSendQueueFastPath(t *testing.T) {
	var q sendQueue

	m1 := &sendMsg{buf: []byte("M1")}
	if !q.isEmptyThenAdd(m1) {
		t.Fatal("first enqueue into empty queue must report true")
	}

	m2 := &sendMsg{buf: []byte("M2")}
	if q.isEmptyThenAdd(m2) {
		t.Fatal("enqueue behind an in-flight message must report false")
	}

	if q.popHead() != m1 {
		t.Fatal("popHead must drain M1 first")
	}
	if q.peekHead() != m2 {
		t.Fatal("M2 must be the new head after M1 drains")
	}
	if q.popHead() != m2 {
		t.Fatal("popHead must drain M2 second")
	}
	if q.popHead() != nil {
		t.Fatal("popHead on an empty queue must return nil")
	}
}

// TestUDPEcho drives a datagram round trip over loopback, one Loop
// serving both sockets, mirroring the TCP echo scenario's shared-Loop
// shape for connectionless sockets.
func TestUDPEcho(t *testing.T) {
	l, k := loop.New(loop.Config{})
	if k != errs.OK {
		t.Fatalf("loop.New: %v", k)
	}

	server := NewUDPTransport(l)
	if k := server.Open(); k != errs.OK {
		t.Fatalf("server.Open: %v", k)
	}
	serverAddr, k := localAddr(serverFD(server))
	if k != errs.OK {
		t.Fatalf("server localAddr: %v", k)
	}
	server.OnRecv(func(buf []byte, from Sockaddr, k errs.Kind) {
		if k != errs.OK {
			return
		}
		server.Send(append([]byte(nil), buf...), from)
	})
	if k := server.RecvStart(); k != errs.OK {
		t.Fatalf("server.RecvStart: %v", k)
	}

	client := NewUDPTransport(l)
	if k := client.Open(); k != errs.OK {
		t.Fatalf("client.Open: %v", k)
	}

	var got []byte
	client.OnRecv(func(buf []byte, from Sockaddr, k errs.Kind) {
		if k != errs.OK {
			return
		}
		got = append(got, buf...)
		l.Stop()
	})
	if k := client.RecvStart(); k != errs.OK {
		t.Fatalf("client.RecvStart: %v", k)
	}
	if k := client.Send([]byte("PING"), NewSockaddr(net.ParseIP("127.0.0.1"), serverAddr.Port())); k != errs.OK {
		t.Fatalf("client.Send: %v", k)
	}

	deadline, _ := clock.Add(clock.Now(), 2*clock.Second)
	if k := l.RunUntil(&deadline); k != errs.OK {
		t.Fatalf("RunUntil: %v", k)
	}
	if string(got) != "PING" {
		t.Fatalf("echo mismatch: got %q", got)
	}

	if k := client.Close(); k != errs.OK {
		t.Fatalf("client.Close: %v", k)
	}
	if k := server.Close(); k != errs.OK {
		t.Fatalf("server.Close: %v", k)
	}
	if k := l.Term(); k != errs.OK {
		t.Fatalf("Term: %v", k)
	}
}

// serverFD extracts the fd out of the concrete *udpSocket so the test can
// discover the ephemeral port Open bound, without UDPSocket exposing an
// Addr() method of its own (spec.md's UDP vtable has no such accessor —
// callers normally learn the peer address from OnRecv's From argument).
func serverFD(s UDPSocket) int {
	return s.(*udpSocket).fd
}
