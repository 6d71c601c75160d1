// Package parallel provides chunked data parallelism for the per-sample and
// per-feature posterior updates. Updates inside one parameter class are
// independent given the previous iteration's snapshot, so they can be split
// across workers freely; the engine commits results only after Parallelize
// returns, keeping partial iterations invisible to other classes.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize splits [0, items) into contiguous chunks, one per available
// CPU, and runs fn on each chunk concurrently. It returns after all chunks
// complete.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so the last chunk is never empty-sized out.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// is at or below threshold, and parallelizes otherwise. Small updates are
// cheaper than the goroutine fan-out.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// For runs fn once per index in [0, items), parallelized above threshold.
// Convenience wrapper for per-sample and per-feature update loops.
func For(items, threshold int, fn func(i int)) {
	ParallelizeWithThreshold(items, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
