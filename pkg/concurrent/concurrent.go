// Package concurrent runs indexed work across a bounded number of goroutines.
package concurrent

import (
	"context"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach calls action for every index in [0, n) using at most workers
// goroutines. The first error cancels the context handed to the remaining
// calls, and ForEach returns it once every started call has finished.
// workers <= 0 means GOMAXPROCS.
func ForEach(ctx context.Context, n, workers int, action func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// gctx is cancelled by Wait, so only the caller's ctx decides the result
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return action(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ParallelMap applies mapFn to every index in [0, n), preserving order. On
// error the partially filled slice is returned along with it.
func ParallelMap[R any](ctx context.Context, n, workers int, mapFn func(ctx context.Context, i int) (R, error)) ([]R, error) {
	out := make([]R, n)
	err := ForEach(ctx, n, workers, func(ctx context.Context, i int) error {
		r, err := mapFn(ctx, i)
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	return out, err
}

// Concurrent runs action for each element of seq in its own goroutine and
// returns the first error encountered.
func Concurrent[T any](seq iter.Seq[T], action func(T) error) error {
	var g errgroup.Group
	for value := range seq {
		g.Go(func() error {
			return action(value)
		})
	}
	return g.Wait()
}
