// Package parallel splits index ranges over a bounded set of goroutines.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Rows calls fn on contiguous bands [lo, hi) covering [0, n). Bands never
// overlap, so fn may write to its own rows of a shared output without locking.
func Rows(workers, n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers == 1 || n == 1 {
		fn(0, n)
		return
	}
	bands := workers * 4
	if bands > n {
		bands = n
	}
	size := (n + bands - 1) / bands
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// Each runs fn for every index in [0, n) with at most workers goroutines and
// stops scheduling new work after the first error or context cancellation.
func Each(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
