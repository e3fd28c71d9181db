// Package parallel provides parallel execution utilities for the Fold convolution engine.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
	}
}

// Run executes fn(task) for every task in [0, tasks) and returns the first
// error. All tasks run to completion even when one fails, so workers never
// observe partially written scratch buffers. At most workers goroutines are
// in flight; workers <= 0 means one per CPU.
//
// Each task is expected to carry its own preallocated scratch identified by
// the task index, so tasks never contend on shared buffers.
func Run(tasks, workers int, fn func(task int) error) error {
	if tasks <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > tasks {
		workers = tasks
	}

	if workers == 1 {
		for t := 0; t < tasks; t++ {
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for t := 0; t < tasks; t++ {
		t := t // per-iteration copy: required for go <1.22 loopvar semantics
		g.Go(func() error {
			return fn(t)
		})
	}
	return g.Wait()
}
