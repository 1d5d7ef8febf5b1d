package retry

import (
	"context"
	"time"
)

// Policy is the shared retry configuration for transient failures. One policy
// instance is reused by the ledger and the pricing calculator so backoff
// behavior stays consistent across the engine.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error qualifies for another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// DefaultPolicy covers short lock-contention bursts without holding HTTP
// requests hostage.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
	}
}

// Do runs op until it succeeds, a non-retryable error occurs, attempts run
// out, or the context is done. The delay doubles per attempt up to MaxDelay.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
