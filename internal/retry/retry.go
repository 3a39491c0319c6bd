package retry

import (
	"context"
	"time"
)

// Policy is the single retry abstraction applied to provider searches and
// token exchanges. The delay schedule is clamped: attempts beyond its length
// reuse the last delay.
type Policy struct {
	MaxAttempts int
	Delays      []time.Duration
	// Retryable reports whether an error is worth another attempt. Nil means
	// every error is retryable.
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delays: []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
		},
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is not
// retryable, or ctx is canceled. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			delayIdx := attempt - 1
			if delayIdx >= len(p.Delays) {
				delayIdx = len(p.Delays) - 1
			}
			var delay time.Duration
			if delayIdx >= 0 {
				delay = p.Delays[delayIdx]
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}

	return lastErr
}
