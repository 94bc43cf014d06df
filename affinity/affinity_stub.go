//go:build !linux && !windows
// +build !linux,!windows

package affinity

import "github.com/momentics/aioloop/errs"

// pinPlatform has no implementation on this platform; loop.Loop logs a
// warning and continues unpinned when Pin returns this.
func pinPlatform(cpuID int) errs.Kind {
	return errs.EOPNOTSUPP
}
