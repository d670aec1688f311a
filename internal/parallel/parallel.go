// Package parallel runs indexed tasks on a fixed number of goroutines.
package parallel

import "golang.org/x/sync/errgroup"

// ForEach calls body for every i in [0, length) using at most limit goroutines
// and returns after all calls have finished. The first error is returned.
func ForEach(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < length; i++ {
		i := i
		g.Go(func() error {
			return body(i)
		})
	}
	return g.Wait()
}

// Map runs fn for every i in [0, length) and collects the results by index.
// Each task writes only its own slot.
func Map[T any](length, limit int, fn func(i int) (T, error)) ([]T, error) {
	out := make([]T, max(length, 0))
	err := ForEach(length, limit, func(i int) error {
		v, err := fn(i)
		if err != nil {
			return err
		}
		out[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
