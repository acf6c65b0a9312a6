package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map applies mapFunc to every element of seq using at most limit
// concurrent workers and yields results as they complete. Completion
// order is not the input order. Input elements carrying an error are
// skipped. Map is context aware, a cancelled context ends processing.
func Map[E, D any](ctx context.Context, limit int, seq iter.Seq2[E, error], mapFunc func(context.Context, E) (D, error)) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit + 1)
		results := make(chan result[D], limit)

		g.Go(func() error {
			for e, err := range seq {
				if err != nil {
					continue
				}
				g.Go(func() error {
					d, mapErr := mapFunc(gctx, e)
					select {
					case <-gctx.Done():
						return gctx.Err()
					case results <- result[D]{d: d, e: mapErr}:
						return nil
					}
				})
			}
			return nil
		})

		go func() {
			_ = g.Wait()
			close(results)
		}()

		for r := range results {
			if ctx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
