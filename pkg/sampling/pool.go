// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerCount returns the pool size used for a computation of pathSample
// paths: min(available, pathSample). A non-positive available means
// runtime.GOMAXPROCS(0). The result is at least 1.
func WorkerCount(available, pathSample int) int {
	if available < 1 {
		available = runtime.GOMAXPROCS(0)
	}
	n := min(available, pathSample)
	if n < 1 {
		n = 1
	}
	return n
}

// pool is a fixed set of worker goroutines scoped to one computation.
//
// acquirePool starts the workers; release closes the job queue and waits
// for every worker to exit. Callers must release the pool on every return
// path.
type pool struct {
	ctx   context.Context
	group *errgroup.Group
	jobs  chan int

	releaseOnce sync.Once
	releaseErr  error
}

// acquirePool starts size workers that call work for each dispatched path
// index. A worker stops at the first error, which cancels the pool context
// and stops further dispatch.
func acquirePool(ctx context.Context, size int, work func(path int) error) *pool {
	group, gctx := errgroup.WithContext(ctx)
	p := &pool{
		ctx:   gctx,
		group: group,
		jobs:  make(chan int),
	}

	for w := 0; w < size; w++ {
		group.Go(func() error {
			for path := range p.jobs {
				if gctx.Err() != nil {
					// Drain without working once the computation is aborted.
					continue
				}
				if err := work(path); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return p
}

// dispatch hands path to the next idle worker, blocking until one is free.
// It reports false once the pool context is done, either because a path
// failed or because the caller's context was cancelled.
func (p *pool) dispatch(path int) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobs <- path:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// release closes the queue and joins all workers. It returns the first
// worker error. Subsequent calls return the same result.
func (p *pool) release() error {
	p.releaseOnce.Do(func() {
		close(p.jobs)
		p.releaseErr = p.group.Wait()
	})
	return p.releaseErr
}
