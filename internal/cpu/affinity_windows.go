//go:build windows

package cpu

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to a single core chosen from workerID. The returned release func must run on
// the same goroutine.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	handle, _, _ := getCurrentThread.Call()
	mask := uintptr(1) << uint(coreFor(workerID))

	// A zero previous mask signals failure.
	if prev, _, callErr := setThreadAffinityMask.Call(handle, mask); prev == 0 {
		return runtime.UnlockOSThread, callErr
	}
	return runtime.UnlockOSThread, nil
}
