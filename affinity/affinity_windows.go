//go:build windows
// +build windows

package affinity

import "syscall"

import "github.com/momentics/aioloop/errs"

// pinPlatform sets thread affinity via SetThreadAffinityMask.
func pinPlatform(cpuID int) errs.Kind {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	procSetThreadAffinityMask := kernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThread := kernel32.NewProc("GetCurrentThread")
	hThread, _, _ := procGetCurrentThread.Call()
	mask := uintptr(1) << cpuID
	ret, _, _ := procSetThreadAffinityMask.Call(hThread, mask)
	if ret == 0 {
		return errs.EIO
	}
	return errs.OK
}
