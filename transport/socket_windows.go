//go:build windows

package transport

import (
	"golang.org/x/sys/windows"

	"github.com/momentics/aioloop/backend"
	"github.com/momentics/aioloop/errs"
)

func newNonblockingSocket(fam Sockaddr) (int, errs.Kind) {
	domain := windows.AF_INET
	if fam.Family() == backend.FamilyINET6 {
		domain = windows.AF_INET6
	}
	sock, err := windows.Socket(domain, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, errs.EIO
	}
	var nonblocking uint32 = 1
	windows.IoctlSocket(sock, windows.FIONBIO, &nonblocking)
	windows.SetsockoptInt(sock, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	return int(sock), errs.OK
}

func newNonblockingUDPSocket(fam Sockaddr) (int, errs.Kind) {
	domain := windows.AF_INET
	if fam.Family() == backend.FamilyINET6 {
		domain = windows.AF_INET6
	}
	sock, err := windows.Socket(domain, windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return -1, errs.EIO
	}
	var nonblocking uint32 = 1
	windows.IoctlSocket(sock, windows.FIONBIO, &nonblocking)
	return int(sock), errs.OK
}

func bindListen(fd int, addr Sockaddr, backlog int) errs.Kind {
	sa := toWindowsSockaddr(addr)
	if err := windows.Bind(windows.Handle(fd), sa); err != nil {
		return errs.EADDRINUSE
	}
	if err := windows.Listen(windows.Handle(fd), backlog); err != nil {
		return errs.EIO
	}
	return errs.OK
}

func bindUDP(fd int, addr Sockaddr) errs.Kind {
	if err := windows.Bind(windows.Handle(fd), toWindowsSockaddr(addr)); err != nil {
		return errs.EADDRINUSE
	}
	return errs.OK
}

func connectNonblocking(fd int, addr Sockaddr) (inProgress bool, k errs.Kind) {
	err := windows.Connect(windows.Handle(fd), toWindowsSockaddr(addr))
	if err == nil {
		return false, errs.OK
	}
	if err == windows.WSAEWOULDBLOCK {
		return true, errs.OK
	}
	return false, errs.ECONNREFUSED
}

func localAddr(fd int) (Sockaddr, errs.Kind) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return Sockaddr{}, errs.EIO
	}
	return fromWindowsSockaddr(sa), errs.OK
}

func closeFD(fd int) {
	windows.Closesocket(windows.Handle(fd))
}

func toWindowsSockaddr(addr Sockaddr) windows.Sockaddr {
	if addr.Family() == backend.FamilyINET6 {
		sa := &windows.SockaddrInet6{Port: int(addr.Port())}
		copy(sa.Addr[:], addr.IP().To16())
		return sa
	}
	sa := &windows.SockaddrInet4{Port: int(addr.Port())}
	copy(sa.Addr[:], addr.IP().To4())
	return sa
}

func fromWindowsSockaddr(sa windows.Sockaddr) Sockaddr {
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return NewSockaddr(append([]byte(nil), a.Addr[:]...), uint16(a.Port))
	case *windows.SockaddrInet6:
		return NewSockaddr(append([]byte(nil), a.Addr[:]...), uint16(a.Port))
	default:
		return Sockaddr{}
	}
}
