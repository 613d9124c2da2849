// Package enrich implements the Parallel Enricher (C6): mapping detected
// books through an aggregator lookup in bounded-concurrency batches, with
// per-item progress and per-item failure isolation.
package enrich

import (
	"context"
	"sync"
)

// DefaultConcurrency is the batch size spec.md §4.6 names as the default.
const DefaultConcurrency = 10

// EnrichFunc resolves a single item. A non-nil error marks that item as
// failed without aborting the rest of the batch.
type EnrichFunc[T any] func(ctx context.Context, item T) (T, error)

// ProgressFunc is invoked once per completed item, in completion order
// (which may differ from input order within a batch). completed counts
// items finished so far across the whole run, not just the current batch.
type ProgressFunc[T any] func(completed, total int, currentTitle string, isError bool)

// TitleOf extracts a human-readable label for an item, used for progress
// reporting only.
type TitleOf[T any] func(item T) string

// EnrichAll implements spec.md §4.6: items are processed in batches of
// concurrency, each batch fully awaited before the next starts. Progress is
// reported in completion order; results are returned in input order,
// because batch slicing plus a per-batch WaitGroup preserves index
// assignment regardless of which goroutine in the batch finishes first.
// isCanceled is polled between batches (not within one); when it returns
// true, or ctx is done, no further batches are dispatched and the items
// already copied into results (untouched input values for anything not yet
// started) are returned immediately. isCanceled may be nil.
func EnrichAll[T any](ctx context.Context, items []T, enrich EnrichFunc[T], progress ProgressFunc[T], titleOf TitleOf[T], concurrency int, isCanceled func() bool) []T {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	total := len(items)
	results := make([]T, total)
	copy(results, items)

	var completed int
	var mu sync.Mutex

	for start := 0; start < total; start += concurrency {
		select {
		case <-ctx.Done():
			return results
		default:
		}
		if isCanceled != nil && isCanceled() {
			return results
		}

		end := start + concurrency
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()

				out, err := enrich(ctx, items[i])

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					results[i] = attachError(items[i], err)
				} else {
					results[i] = out
				}

				completed++
				if progress != nil {
					title := ""
					if titleOf != nil {
						title = titleOf(items[i])
					}
					progress(completed, total, title, err != nil)
				}
			}()
		}
		wg.Wait()
	}

	return results
}

// errorAttacher lets EnrichAll attach a per-item enrichmentError without
// EnrichAll itself knowing the concrete item type's shape.
type errorAttacher interface {
	WithEnrichmentError(err error) any
}

func attachError[T any](item T, err error) T {
	if a, ok := any(item).(errorAttacher); ok {
		if v, ok := a.WithEnrichmentError(err).(T); ok {
			return v
		}
	}
	return item
}
