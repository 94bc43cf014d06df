//go:build unix

package transport

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
)

func newNonblockingSocket(fam Sockaddr) (int, errs.Kind) {
	domain := unix.AF_INET
	if fam.Family() == backend.FamilyINET6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, errs.EIO
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errs.EIO
	}
	unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, errs.OK
}

func newNonblockingUDPSocket(fam Sockaddr) (int, errs.Kind) {
	domain := unix.AF_INET
	if fam.Family() == backend.FamilyINET6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, errs.EIO
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errs.EIO
	}
	return fd, errs.OK
}

func bindListen(fd int, addr Sockaddr, backlog int) errs.Kind {
	sa := toUnixSockaddr(addr)
	if err := unix.Bind(fd, sa); err != nil {
		return errs.EADDRINUSE
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return errs.EIO
	}
	return errs.OK
}

func bindUDP(fd int, addr Sockaddr) errs.Kind {
	if err := unix.Bind(fd, toUnixSockaddr(addr)); err != nil {
		return errs.EADDRINUSE
	}
	return errs.OK
}

// connectNonblocking issues connect() on a non-blocking socket. A nil
// return with inProgress true means the caller must wait for write
// readiness (EINPROGRESS), exactly the case backend.TCPConnectOp's
// readiness-then-getsockopt(SO_ERROR) dispatch resolves.
func connectNonblocking(fd int, addr Sockaddr) (inProgress bool, k errs.Kind) {
	err := unix.Connect(fd, toUnixSockaddr(addr))
	if err == nil {
		return false, errs.OK
	}
	if err == unix.EINPROGRESS {
		return true, errs.OK
	}
	return false, errs.ECONNREFUSED
}

func localAddr(fd int) (Sockaddr, errs.Kind) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Sockaddr{}, errs.EIO
	}
	return fromUnixSockaddr(sa), errs.OK
}

func closeFD(fd int) {
	unix.Close(fd)
}

func toUnixSockaddr(addr Sockaddr) unix.Sockaddr {
	if addr.Family() == backend.FamilyINET6 {
		sa := &unix.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.IP().To16())
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port())}
	copy(sa.Addr[:], addr.IP().To4())
	return sa
}

func fromUnixSockaddr(sa unix.Sockaddr) Sockaddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return NewSockaddr(append([]byte(nil), a.Addr[:]...), uint16(a.Port))
	case *unix.SockaddrInet6:
		return NewSockaddr(append([]byte(nil), a.Addr[:]...), uint16(a.Port))
	default:
		return Sockaddr{}
	}
}
