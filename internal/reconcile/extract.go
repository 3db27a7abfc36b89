package reconcile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sillsdev/silauto-backend/internal/extract"
)

type extractFunc[T any] func(ctx context.Context, path string) (T, error)

type extracted[T any] struct {
	value T
	err   error
	ok    bool
}

// extractAll runs fn over paths with at most limit in flight. Per-path errors
// land in the report; the returned slice keeps only successes, in path order.
func extractAll[T any](ctx context.Context, e *Engine, r *Report, paths []string, fn extractFunc[T]) []T {
	slots := make([]extracted[T], len(paths))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrent)
	for i, path := range paths {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					slots[i] = extracted[T]{err: fmt.Errorf("%s: extractor panicked: %v", path, rec)}
				}
			}()
			v, err := fn(ctx, path)
			slots[i] = extracted[T]{value: v, err: err, ok: err == nil}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]T, 0, len(paths))
	for i, s := range slots {
		switch {
		case s.ok:
			out = append(out, s.value)
		case extract.IsSkip(s.err):
			r.Skipped++
		default:
			r.fail(paths[i], s.err)
			if errors.Is(s.err, extract.ErrMalformedExperiment) {
				e.log.Error("malformed experiment", "kind", r.Kind, "path", paths[i], "error", s.err)
			} else {
				e.log.Warn("artifact extraction failed", "kind", r.Kind, "path", paths[i], "error", s.err)
			}
		}
	}
	return out
}
