// Package pool runs model-service calls over a slice of items in small
// concurrent groups. Each group completes before the next starts, and group
// starts are paced so request buffers from finished calls can be reclaimed on
// memory-constrained hosts.
package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Runner struct {
	concurrency int
	pacer       *rate.Limiter
}

// NewRunner bounds in-flight calls to concurrency and spaces group starts by
// groupDelay. Concurrency below 1 is treated as 1.
func NewRunner(concurrency int, groupDelay time.Duration) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	pacer := rate.NewLimiter(rate.Inf, 1)
	if groupDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(groupDelay), 1)
	}
	return &Runner{
		concurrency: concurrency,
		pacer:       pacer,
	}
}

func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Map applies fn to every item, preserving input order in the results. Errors
// are reported per item; a failed item never stops the remaining ones. The
// whole run stops early only when ctx is done.
func Map[T, R any](ctx context.Context, r *Runner, items []T, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	for start := 0; start < len(items); start += r.concurrency {
		if err := r.pacer.Wait(ctx); err != nil {
			for i := start; i < len(items); i++ {
				errs[i] = err
			}
			return results, errs
		}

		end := start + r.concurrency
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = fn(ctx, i, items[i])
			}(i)
		}
		wg.Wait()

		if ctx.Err() != nil {
			for i := end; i < len(items); i++ {
				errs[i] = ctx.Err()
			}
			return results, errs
		}
	}

	return results, errs
}
