package store

import (
	"context"
	"errors"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

// WithRetry runs fn, retrying store-unavailable failures with a fixed
// backoff. Other errors, and context cancellation, stop immediately.
func WithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		last = fn(ctx)
		if last == nil || !errors.Is(last, domain.ErrStoreUnavailable) {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return last
}
