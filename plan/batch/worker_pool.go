package batch

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs independent jobs on a fixed number of goroutines.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool
// workerCount: number of worker goroutines (0 = use NumCPU)
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Execute calls job once for every index in [0, n) and waits for all calls
// to return. Jobs record their own outcome, typically into a slot of a
// caller-owned slice indexed by i, so results keep input order and one
// failing job never stops the others.
//
// Once ctx is done, jobs that have not started are handed to skip instead.
func (p *WorkerPool) Execute(ctx context.Context, n int, job func(ctx context.Context, i int), skip func(i int, err error)) {
	if n == 0 {
		return
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	workers := p.workerCount
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					if skip != nil {
						skip(idx, err)
					}
					continue
				}
				job(ctx, idx)
			}
		}()
	}
	wg.Wait()
}

// WorkerCount returns the number of worker goroutines
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}
