// Package benchmarks measures dispatch overhead and throughput of the pool
// under different configurations and workloads.
package benchmarks

import (
	"time"

	"github.com/utkarsh5026/cpool/pool"
)

// managerConfig is one pool configuration under benchmark.
type managerConfig struct {
	name string
	opts []pool.Option
}

// getThreadingConfigs returns the worker thread bindings to compare.
func getThreadingConfigs(workerCount int) []managerConfig {
	return []managerConfig{
		{
			name: "LockedThread",
			opts: []pool.Option{pool.WithWorkerCount(workerCount)},
		},
		{
			name: "CPUAffinity",
			opts: []pool.Option{pool.WithWorkerCount(workerCount), pool.WithCPUAffinity()},
		},
	}
}

// getFeatureConfigs returns configurations that add one feature each on top
// of the baseline.
func getFeatureConfigs(workerCount int) []managerConfig {
	base := pool.WithWorkerCount(workerCount)
	return []managerConfig{
		{name: "Baseline", opts: []pool.Option{base}},
		{name: "WithRetry", opts: []pool.Option{base, pool.WithRetryPolicy(3, time.Microsecond)}},
		{name: "WithRateLimit", opts: []pool.Option{base, pool.WithRateLimit(1e9, 1<<20)}},
		{name: "WithHooks", opts: []pool.Option{
			base,
			pool.WithOnTaskStart(func(pool.TaskInfo) {}),
			pool.WithOnTaskEnd(func(pool.TaskInfo, error) {}),
		}},
	}
}

// cpuBoundWork simulates a CPU-intensive operation.
func cpuBoundWork(iterations int) func(task int) int {
	return func(task int) int {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result
	}
}

// ioBoundWork simulates an I/O operation with a delay.
func ioBoundWork(delay time.Duration) func(task int) int {
	return func(task int) int {
		time.Sleep(delay)
		return task * 2
	}
}

// mixedWork sleeps up to 9ms depending on the task, then computes.
func mixedWork(task int) int {
	time.Sleep(time.Duration(task%10) * time.Millisecond)
	result := 0
	for i := range 1000 {
		result += i
	}
	return result + task
}
