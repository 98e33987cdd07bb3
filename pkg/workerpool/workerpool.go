// Package workerpool provides bounded concurrent processing utilities.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item using at most workerCount goroutines and
// returns the results in item order. The first error cancels the remaining
// work and is returned; every goroutine has exited by the time Map returns.
func Map[T, R any](
	ctx context.Context,
	workerCount int,
	items []T,
	fn func(context.Context, T) (R, error),
) ([]R, error) {
	if workerCount <= 0 {
		workerCount = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	results := make([]R, len(items))
	for idx, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
