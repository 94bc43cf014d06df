//go:build unix

package mem

import "golang.org/x/sys/unix"

// PageSize returns the OS page size, grounded on the teacher's use of
// golang.org/x/sys for all syscall-adjacent platform queries.
func PageSize() int {
	return unix.Getpagesize()
}
