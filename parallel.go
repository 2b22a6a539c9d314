package kifmm

import "sync"

// parallelFor splits [0, n) into contiguous chunks of roughly n/workers
// items and runs fn on each chunk concurrently, waiting for every chunk
// to finish before returning. Returns nil without calling fn when n <= 0,
// and falls back to a single synchronous call when workers <= 1 or
// n == 1. The first error returned by any chunk is
// reported; other chunks still run to completion.
func parallelFor(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 1 || n == 1 {
		return fn(0, n)
	}

	chunkSize := (n + workers - 1) / workers
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		if lo >= n {
			break
		}

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			errs[w] = fn(lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
