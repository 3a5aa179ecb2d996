package evaldag

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent criterion execution across every suite run sharing
// it, decoupling parallelism from a single suite's graph topology (spec.md
// §4.4 "concurrency is capped by the platform, never by the graph
// topology").
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool constructs a Pool admitting at most size concurrent criteria.
func NewPool(size int64) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// acquire blocks until a slot is free or ctx is done.
func (p *Pool) acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *Pool) release() {
	p.sem.Release(1)
}
