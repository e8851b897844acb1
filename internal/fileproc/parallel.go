// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x suits mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count; n <= 0 means 2x NumCPU.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// MapIndexed calls fn for every item with at most workers goroutines and
// returns results and errors at the index of their item, so callers see a
// deterministic order regardless of scheduling. Items not started before ctx
// is done get ctx.Err() as their error.
func MapIndexed[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	p := pool.New().WithMaxGoroutines(Workers(workers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = p.Wait()

	return results, errs
}
