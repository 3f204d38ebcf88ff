// Package retry runs an operation with exponential backoff. It backs
// long-lived loops that must survive dependency outages, like the
// cross-instance event relay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Policy struct {
	// InitialBackoff is the wait after the first failure. It doubles on
	// every consecutive failure, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxAttempts bounds the number of tries. Zero means retry forever,
	// which is what supervision loops want.
	MaxAttempts int

	OnRetry func(attempt int, err error, backoff time.Duration)
}

// PermanentError aborts the retry loop immediately. Wrap errors that
// more attempts cannot fix, like a malformed configuration.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do runs op until it succeeds, returns a permanent error, exhausts
// p.MaxAttempts, or ctx is cancelled.
func Do(ctx context.Context, clock clockwork.Clock, p Policy, op func(ctx context.Context) error) error {
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}
