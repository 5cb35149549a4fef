package search

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many scan tasks run at once across all queries.
// Tasks of one query share the pool with every other in-flight query.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

// NewWorkerPool creates a pool of size slots (0 = runtime.NumCPU()).
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int {
	return p.size
}

// Acquire blocks until a slot is free or ctx is done.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (p *WorkerPool) Release() {
	p.sem.Release(1)
}
