package pipeline

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, sleeping wait between tries, and
// returns the first successful result. The last error is returned when
// every attempt fails or ctx is canceled mid-wait. Callers decide what
// exhaustion means: dropping the unit of work or aborting the stage.
func Retry[T any](ctx context.Context, attempts int, wait time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
