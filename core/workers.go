package kang

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEachChunk calls work for every chunk index in [0, n).
//
// With workers <= 1 chunks run in order on the calling goroutine. Otherwise
// up to workers goroutines each build their own state with newState, so
// scratch buffers are never shared between concurrent chunks. The first
// error cancels the remaining chunks and is the one returned.
func forEachChunk[S any](ctx context.Context, n, workers int, newState func() S, work func(s S, i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 1 || n == 1 {
		s := newState()
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := work(s, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	next := make(chan int)
	g.Go(func() error {
		defer close(next)
		for i := range n {
			select {
			case next <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range min(workers, n) {
		g.Go(func() error {
			s := newState()
			for i := range next {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := work(s, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
