//go:build !linux && !windows

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. Core pinning is not
// available on this platform, so the thread keeps the default affinity.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
