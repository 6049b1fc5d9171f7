// Package concurrent runs homogeneous units of work with a concurrency
// ceiling and an error-rate circuit breaker.
package concurrent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxErrorsPerSecond is the breaker threshold used when the caller
// passes a non-positive value.
const DefaultMaxErrorsPerSecond = 10

// RateError is returned by RunAll when the rolling one-second error rate
// exceeded the limit. It carries every result collected before the breaker
// tripped and every error seen, so callers can recover partial successes
// instead of only learning that the run failed.
type RateError[R any] struct {
	Limit   int
	Results []R
	Errors  []error
}

func (e *RateError[R]) Error() string {
	return fmt.Sprintf("concurrent: error rate exceeded %d errors per second (%d errors, %d results)",
		e.Limit, len(e.Errors), len(e.Results))
}

// RunAll invokes fn once per parameter with at most limit invocations in
// flight; as each finishes the next queued one starts. All results and all
// per-unit errors are collected and returned.
//
// Error timestamps are kept in a rolling one-second window. Once the window
// holds more than maxErrorsPerSecond errors no new units are started;
// already-started units drain, and the collected partial results are raised
// inside a *RateError.
func RunAll[P, R any](ctx context.Context, params []P, limit, maxErrorsPerSecond int, fn func(context.Context, P) (R, error)) ([]R, []error, error) {
	if limit <= 0 {
		limit = 1
	}
	if maxErrorsPerSecond <= 0 {
		maxErrorsPerSecond = DefaultMaxErrorsPerSecond
	}

	var (
		mu      sync.Mutex
		results []R
		errs    []error
		window  []time.Time
		tripped bool
	)

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for _, p := range params {
		mu.Lock()
		stop := tripped
		mu.Unlock()
		if stop {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(p P) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := fn(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				results = append(results, res)
				return
			}

			now := time.Now()
			errs = append(errs, err)
			window = append(window, now)
			for len(window) > 0 && now.Sub(window[0]) > time.Second {
				window = window[1:]
			}
			if len(window) > maxErrorsPerSecond {
				tripped = true
			}
		}(p)
	}

	wg.Wait()

	if tripped {
		return nil, nil, &RateError[R]{Limit: maxErrorsPerSecond, Results: results, Errors: errs}
	}
	if err := ctx.Err(); err != nil {
		return results, errs, err
	}
	return results, errs, nil
}
