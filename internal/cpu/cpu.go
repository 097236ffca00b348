// Package cpu exposes the host's parallelism and pins worker threads to cores.
package cpu

import "runtime"

// NumCPU returns the number of logical CPUs usable by the current process.
func NumCPU() int {
	return runtime.NumCPU()
}

// coreFor maps a worker index onto a valid core index.
func coreFor(workerID int) int {
	n := NumCPU()
	if workerID < 0 {
		workerID = -workerID
	}
	return workerID % n
}
