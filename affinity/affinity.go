// Package affinity pins the calling OS thread to a single logical CPU.
// loop.Loop uses this to keep its one dedicated OS thread (spec.md §1:
// one loop per OS thread, no internal goroutines) off the scheduler's
// migration path. Platform-specific implementations live in
// affinity_linux.go, affinity_windows.go, and affinity_stub.go, selected
// by build tag.
package affinity

import "github.com/momentics/aioloop/errs"

// Pin pins the calling OS thread to cpuID. Returns errs.EOPNOTSUPP on
// platforms with no affinity implementation, errs.EIO if the underlying
// platform call fails.
func Pin(cpuID int) errs.Kind {
	return pinPlatform(cpuID)
}
