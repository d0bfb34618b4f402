package interpolation

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for indices [0,n) on up to workers goroutines. If any call
// fails it returns the lowest failing index and its error; indices right of
// a known failure are skipped, indices left of it always run. A cancelled
// ctx stops scheduling and is returned with index -1.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) (int, error) {
	var leftmost atomic.Int64
	leftmost.Store(int64(n))
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if int64(i) > leftmost.Load() || ctx.Err() != nil {
				return nil
			}
			if err := fn(i); err != nil {
				errs[i] = err
				for {
					cur := leftmost.Load()
					if int64(i) >= cur || leftmost.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if idx := int(leftmost.Load()); idx < n {
		return idx, errs[idx]
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return -1, nil
}
