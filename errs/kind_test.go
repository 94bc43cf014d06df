package errs_test

import (
	"errors"
	"testing"

	"github.com/momentics/aioloop/errs"
)

// canonicalSet is the exact set spec.md §8 property 1 requires.
var canonicalSet = []string{
	"OK", "E2BIG", "EACCES", "EADDRINUSE", "EADDRNOTAVAIL", "EAFNOSUPPORT",
	"EAGAIN", "EALREADY", "EBADF", "EBADMSG", "EBUSY", "ECANCELED", "ECHILD",
	"ECLOCKRANGE", "ECLOCKUNSET", "ECONNABORTED", "ECONNREFUSED", "ECONNRESET",
	"EDEADLK", "EDEP", "EDESTADDRREQ", "EDOM", "EDQUOT", "EEOF", "EEXIST",
	"EFAULT", "EFBIG", "EHOSTDOWN", "EHOSTUNREACH", "EIDRM", "EILSEQ",
	"EINPROGRESS", "EINTERN", "EINTR", "EINVAL", "EIO", "EISCONN", "EISDIR",
	"ELOOP", "EMFILE", "EMLINK", "EMSGSIZE", "EMULTIHOP", "ENAMETOOLONG",
	"ENETDOWN", "ENETRESET", "ENETUNREACH", "ENFILE", "ENOBUFS", "ENODATA",
	"ENODEV", "ENOENT", "ENOEXEC", "ENOLCK", "ENOLINK", "ENOMEM", "ENOMSG",
	"ENOPROTOOPT", "ENOSPC", "ENOSR", "ENOSTR", "ENOSYS", "ENOTBLK",
	"ENOTCONN", "ENOTDIR", "ENOTEMPTY", "ENOTRECOVERABLE", "ENOTSOCK",
	"ENXIO", "EOPNOTSUPP", "EOVERFLOW", "EOWNERDEAD", "EPERM", "EPFNOSUPPORT",
	"EPIPE", "EPROTO", "EPROTONOSUPPORT", "EPROTOTYPE", "ERANGE", "EROFS",
	"ESHUTDOWN", "ESOCKTNOSUPPORT", "ESPIPE", "ESRCH", "ESTALE", "ESTATE",
	"ESYNTAX", "ETIME", "ETIMEDOUT", "ETOOMANYREFS", "ETXTBSY", "EUSERS",
	"EXDEV",
}

func TestCanonicalNamesExactSetUnique(t *testing.T) {
	all := errs.All()
	if len(all) != len(canonicalSet) {
		t.Fatalf("got %d kinds, want %d", len(all), len(canonicalSet))
	}
	seen := make(map[string]bool, len(all))
	for i, k := range all {
		name := k.String()
		if name != canonicalSet[i] {
			t.Errorf("kind %d: got name %q, want %q", i, name, canonicalSet[i])
		}
		if seen[name] {
			t.Errorf("duplicate canonical name %q", name)
		}
		seen[name] = true
	}
	for _, want := range canonicalSet {
		if !seen[want] {
			t.Errorf("missing canonical name %q", want)
		}
	}
}

func TestOkOnlyForOK(t *testing.T) {
	if !errs.OK.Ok() {
		t.Fatal("OK.Ok() must be true")
	}
	if errs.EINVAL.Ok() {
		t.Fatal("EINVAL.Ok() must be false")
	}
}

func TestWrapPreservesIs(t *testing.T) {
	err := errs.E(errs.ECANCELED, "submission aborted")
	if !errors.Is(err, errs.ECANCELED) {
		t.Fatal("errors.Is must see through the wrapper to the Kind")
	}
	if errors.Is(err, errs.ETIMEDOUT) {
		t.Fatal("must not match an unrelated kind")
	}
}
