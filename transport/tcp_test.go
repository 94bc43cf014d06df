package transport

import (
	"net"
	"testing"

	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
	"github.com/momentics/aioloop/loop"
)

// TestTCPEcho drives scenario S3: a listener bound to 127.0.0.1:0 accepts
// one client, the client writes "PING", the server echoes it back
// unchanged, and the client's read callback observes "PING". Listener and
// client share one Loop, matching how a single cooperative thread serves
// both ends of a loopback connection.
func TestTCPEcho(t *testing.T) {
	l, k := loop.New(loop.Config{})
	if k != errs.OK {
		t.Fatalf("loop.New: %v", k)
	}

	server := NewTCPTransport(l)
	if k := server.Open(); k != errs.OK {
		t.Fatalf("server.Open: %v", k)
	}
	server.OnAccept(func(c Conn) {
		c.OnRead(func(buf []byte, k errs.Kind) {
			if k != errs.OK || len(buf) == 0 {
				return
			}
			c.Write(append([]byte(nil), buf...))
		})
		c.ReadStart()
	})
	if k := server.Listen(NewSockaddr(net.ParseIP("127.0.0.1"), 0)); k != errs.OK {
		t.Fatalf("server.Listen: %v", k)
	}
	addr := server.Addr()

	var got []byte
	client := NewTCPConn(l)
	if k := client.Open(); k != errs.OK {
		t.Fatalf("client.Open: %v", k)
	}
	client.OnConnect(func(k errs.Kind) {
		if k != errs.OK {
			t.Errorf("client connect failed: %v", k)
			return
		}
		client.ReadStart()
		client.Write([]byte("PING"))
	})
	client.OnRead(func(buf []byte, k errs.Kind) {
		if k != errs.OK || len(buf) == 0 {
			return
		}
		got = append(got, buf...)
		l.Stop()
	})
	if k := client.Connect(addr); k != errs.OK {
		t.Fatalf("client.Connect: %v", k)
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

// TestTCPListenerStateGuards checks the listener vtable's state-guard
// edges independent of any actual accept traffic.
func TestTCPListenerStateGuards(t *testing.T) {
	l, k := loop.New(loop.Config{})
	if k != errs.OK {
		t.Fatalf("loop.New: %v", k)
	}
	srv := NewTCPTransport(l)
	if k := srv.Listen(NewSockaddr(net.ParseIP("127.0.0.1"), 0)); k != errs.ESTATE {
		t.Fatalf("Listen before Open: got %v, want ESTATE", k)
	}
	if k := srv.Open(); k != errs.OK {
		t.Fatalf("Open: %v", k)
	}
	if k := srv.Open(); k != errs.ESTATE {
		t.Fatalf("double Open: got %v, want ESTATE", k)
	}
}

// TestTCPConnStateGuards checks Conn vtable state guards without any
// network traffic: Write before Open, double Open.
func TestTCPConnStateGuards(t *testing.T) {
	l, k := loop.New(loop.Config{})
	if k != errs.OK {
		t.Fatalf("loop.New: %v", k)
	}
	c := NewTCPConn(l)
	if k := c.Write([]byte("x")); k != errs.ESTATE {
		t.Fatalf("Write before Open: got %v, want ESTATE", k)
	}
	if k := c.Open(); k != errs.OK {
		t.Fatalf("Open: %v", k)
	}
	if k := c.Open(); k != errs.ESTATE {
		t.Fatalf("double Open: got %v, want ESTATE", k)
	}
}
