// Package transport implements spec.md §4.9's TCP/UDP pipeline: a vtable
// (Go interface) over ctx (the owning Loop, or an upper layer's own
// context once stacked). Grounded on the teacher's examples/reactor_echo
// main.go idiom — bind with net.Listen, extract the raw fd via
// SyscallConn, then drive all I/O through the backend instead of Go's
// netpoller — generalized from one hard-coded echo handler into the full
// open/connect/read-start/read-stop/write/shutdown/close vtable spec.md
// names, plus listener and UDP socket vtables and the upper-layer
// stacking constructor of §4.9's second paragraph.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package transport

import (
	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
)

// Sockaddr is transport's name for backend.Sockaddr; re-exported so
// callers never need to import backend directly just to dial or bind.
type Sockaddr = backend.Sockaddr

// NewSockaddr re-exports backend.NewSockaddr.
var NewSockaddr = backend.NewSockaddr

// Transport is the minimal shared surface every layer of the pipeline
// implements, whether the concrete thing underneath is a listener, a
// connection, or a UDP socket. Stack itself takes and returns a Listener.
type Transport interface {
	Close() errs.Kind
}

// ConnState mirrors spec.md §4.9's connection lifecycle.
type ConnState int32

const (
	ConnClosed ConnState = iota
	ConnOpen
	ConnConnecting
	ConnConnected
	ConnReading
	ConnShutdownState
)

func (s ConnState) String() string {
	switch s {
	case ConnClosed:
		return "Closed"
	case ConnOpen:
		return "Open"
	case ConnConnecting:
		return "Connecting"
	case ConnConnected:
		return "Connected"
	case ConnReading:
		return "Reading"
	case ConnShutdownState:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Conn is the per-connection vtable of spec.md §4.9.
type Conn interface {
	Transport

	Open() errs.Kind
	Connect(addr Sockaddr) errs.Kind
	ReadStart() errs.Kind
	ReadStop() errs.Kind
	Write(buf []byte) errs.Kind
	Shutdown() errs.Kind

	OnConnect(cb func(errs.Kind))
	OnRead(cb func(buf []byte, k errs.Kind))
	OnWrite(cb func(k errs.Kind))
	OnClose(cb func(k errs.Kind))

	State() ConnState
	FD() int
}

// ListenerState mirrors spec.md §4.9's listener lifecycle.
type ListenerState int32

const (
	ListenerClosed ListenerState = iota
	ListenerOpen
	ListenerListening
)

func (s ListenerState) String() string {
	switch s {
	case ListenerClosed:
		return "Closed"
	case ListenerOpen:
		return "Open"
	case ListenerListening:
		return "Listening"
	default:
		return "Unknown"
	}
}

// Listener is the vtable for a bound TCP socket accepting connections.
type Listener interface {
	Transport

	Open() errs.Kind
	Listen(addr Sockaddr) errs.Kind

	OnAccept(cb func(Conn))

	State() ListenerState
	Addr() Sockaddr
}

// UDPState mirrors spec.md §4.9's UDP socket lifecycle.
type UDPState int32

const (
	UDPClosed UDPState = iota
	UDPOpen
	UDPReceiving
)

func (s UDPState) String() string {
	switch s {
	case UDPClosed:
		return "Closed"
	case UDPOpen:
		return "Open"
	case UDPReceiving:
		return "Receiving"
	default:
		return "Unknown"
	}
}

// UDPSocket is the vtable for a UDP socket.
type UDPSocket interface {
	Transport

	Open() errs.Kind
	RecvStart() errs.Kind
	RecvStop() errs.Kind
	Send(buf []byte, addr Sockaddr) errs.Kind

	OnRecv(cb func(buf []byte, from Sockaddr, k errs.Kind))
	OnSend(cb func(k errs.Kind))

	State() UDPState
}
