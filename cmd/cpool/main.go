// Command cpool exercises the worker pool: demo walks through every dispatch
// shape, bench compares throughput across worker counts.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	root, _ := newApp()
	if err := root.Execute(); err != nil {
		zap.S().Errorw("command failed", "error", err)
		os.Exit(1)
	}
}
