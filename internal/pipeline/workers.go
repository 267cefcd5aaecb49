package pipeline

import (
	"context"
	"sync"
)

// forEach runs fn for every index in [0, n) on at most workers goroutines.
// fn writes to its own index of a caller-owned slice, so results do not
// depend on scheduling.
func forEach(ctx context.Context, workers, n int, fn func(i int)) error {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case semaphore <- struct{}{}: // Acquire
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release
			fn(idx)
		}(i)
	}

	wg.Wait()
	return ctx.Err()
}
