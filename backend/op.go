package backend

import "github.com/momentics/aioloop/clock"

// Op is the operation-specific parameter payload passed to Submit. Each
// concrete Backend type-switches on Op to decide what kernel facility to
// arm. Keeping Op as `any` (rather than a closed interface) lets new
// operation kinds be added without perturbing the Backend contract,
// mirroring how the teacher's reactor.FDEventType bitmask stays open to
// read/write/error combinations without new interface methods.
type Op any

// TimerOp arms a one-shot deadline, used by the task package.
type TimerOp struct {
	Baseline clock.Time
}

// TCPListenOp tells the backend that a socket is now listening, used by
// transport's listener Listen after it has bound and listened on the
// socket itself. Every backend completes it immediately with OK.
type TCPListenOp struct {
	FD int
}

// TCPAcceptOp waits for one inbound connection on a listening socket.
type TCPAcceptOp struct {
	ListenFD int
}

// TCPConnectOp initiates an outbound connection.
type TCPConnectOp struct {
	FD   int
	Addr Sockaddr
}

// TCPReadOp reads into Buf once data is available.
type TCPReadOp struct {
	FD  int
	Buf []byte
}

// TCPWriteOp writes Buf once the socket is writable.
type TCPWriteOp struct {
	FD  int
	Buf []byte
}

// TCPShutdownOp half-closes the write side of a connection.
type TCPShutdownOp struct {
	FD int
}

// TCPCloseOp closes a socket outright.
type TCPCloseOp struct {
	FD int
}

// UDPRecvOp receives one datagram into Buf.
type UDPRecvOp struct {
	FD  int
	Buf []byte
}

// UDPSendOp sends Buf to Addr.
type UDPSendOp struct {
	FD   int
	Buf  []byte
	Addr Sockaddr
}
