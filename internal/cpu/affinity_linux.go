//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to a single core chosen from workerID. The returned release func must run on
// the same goroutine.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(coreFor(workerID))

	// pid 0 targets the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return runtime.UnlockOSThread, err
	}
	return runtime.UnlockOSThread, nil
}
