// Package workerpool runs a bounded number of independent jobs concurrently:
// a host running many grids, or many CPF/scenario samples of the same
// grid, in parallel. It is plain channel/sync plumbing rather than a
// third-party library, since nothing this small benefits from one.
package workerpool

import (
	"context"
	"sync"
)

// Job is one unit of work submitted to a Pool.
type Job func(ctx context.Context) (any, error)

// Result pairs a submitted job's index with its outcome.
type Result struct {
	Index int
	Value any
	Err   error
}

// Run executes jobs with at most concurrency goroutines in flight at once,
// returning one Result per job in submission order. concurrency <= 0 means
// unbounded (len(jobs) goroutines).
func Run(ctx context.Context, jobs []Job, concurrency int) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	if concurrency <= 0 || concurrency > len(jobs) {
		concurrency = len(jobs)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			select {
			case <-ctx.Done():
				results[i] = Result{Index: i, Err: ctx.Err()}
				return
			default:
			}
			v, err := job(ctx)
			results[i] = Result{Index: i, Value: v, Err: err}
		}(i, job)
	}
	wg.Wait()
	return results
}
