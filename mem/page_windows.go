//go:build windows

package mem

// PageSize returns the Windows allocation granularity. Windows doesn't
// expose getpagesize(); 4096 matches the x86/x64 page size Windows uses
// for VirtualAlloc-backed regions, the same constant the teacher's
// pool/bufferpool_windows.go assumes implicitly via its fixed 65536
// buffer size (16 pages).
func PageSize() int {
	return 4096
}
