package worker

import (
	"context"
	"sync"
)

// Pool fans queue work out to a fixed set of workers. Jobs for distinct
// filters run in parallel; the scheduler's at-most-one-in-flight rule keeps
// jobs for the same filter serialized.
type Pool struct {
	workers []*Worker
}

// NewPool creates a Pool.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run starts all workers and blocks until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
