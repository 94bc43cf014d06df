package backend

import "net"

// Family identifies an address family, per spec.md §6 (IPv4/IPv6 only;
// the core never needs to understand other families).
type Family int

const (
	FamilyUnspecified Family = iota
	FamilyINET
	FamilyINET6
)

// Sockaddr is a plain value carrier over an IPv4/IPv6 endpoint — the
// Go-level stand-in for "the system sockaddr octet layout, opaque to the
// core except for a size-query helper" (spec.md §3). Wrapping Go's own
// net.IP/port pair rather than hand-rolling the raw octet layout is the
// one deliberate stdlib-only leaf in this codebase: every example repo
// that touches raw sockaddr bytes does so only at the exact syscall call
// site already mediated by golang.org/x/sys, never as a hand-maintained
// value type of its own, so there is no library in the pack to ground a
// custom octet-layout type on.
type Sockaddr struct {
	family Family
	ip     net.IP
	port   uint16
}

// NewSockaddr builds a Sockaddr from an IP and port, inferring the
// family from the IP's form.
func NewSockaddr(ip net.IP, port uint16) Sockaddr {
	fam := FamilyINET
	if ip.To4() == nil {
		fam = FamilyINET6
	}
	return Sockaddr{family: fam, ip: ip, port: port}
}

func (s Sockaddr) Family() Family { return s.family }
func (s Sockaddr) IP() net.IP     { return s.ip }
func (s Sockaddr) Port() uint16   { return s.port }

// Size reports the octet size of the underlying platform sockaddr
// structure this value represents, per spec.md §6's "size-query helper".
func (s Sockaddr) Size() int {
	switch s.family {
	case FamilyINET:
		return 16 // sizeof(struct sockaddr_in)
	case FamilyINET6:
		return 28 // sizeof(struct sockaddr_in6)
	default:
		return 0
	}
}

func (s Sockaddr) String() string {
	return net.JoinHostPort(s.ip.String(), itoa(s.port))
}

func itoa(p uint16) string {
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = byte('0' + p%10)
		p /= 10
	}
	return string(buf[i:])
}
