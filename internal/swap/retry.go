package swap

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy governs bounded retries, applied per leg and around the whole
// swap. A retry only happens when nothing from the previous attempt landed
// on-chain; once a transaction has a signature the attempt's outcome stands
// and recovery goes through the stranded-balance path instead.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// BeforeRetry runs before each re-attempt, after the backoff. Used to
	// invalidate cached swap state so the retry quotes from fresh data.
	BeforeRetry func(ctx context.Context, attempt int)

	Logger *logrus.Entry
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Backoff:     500 * time.Millisecond,
	}
}

// Execute runs fn up to MaxAttempts times. It returns the last result, the
// number of attempts made, and the last error.
func (p RetryPolicy) Execute(
	ctx context.Context,
	fn func(ctx context.Context) (*SwapExecutionResult, error),
) (*SwapExecutionResult, int, error) {

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result *SwapExecutionResult
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return result, attempt - 1, ctx.Err()
			case <-time.After(p.Backoff):
			}
			if p.BeforeRetry != nil {
				p.BeforeRetry(ctx, attempt)
			}
			if p.Logger != nil {
				p.Logger.WithField("attempt", attempt).Warn("retrying swap")
			}
		}

		result, err = fn(ctx)
		if err == nil {
			return result, attempt, nil
		}

		// A landed transaction means on-chain state changed; never re-run.
		if result.Landed() {
			return result, attempt, err
		}
	}

	return result, attempts, err
}

// ExecuteLeg runs one leg attempt up to MaxAttempts times. A leg that
// produced a signature may already be on-chain, so it is never re-run even
// when its confirmation failed.
func (p RetryPolicy) ExecuteLeg(
	ctx context.Context,
	fn func(ctx context.Context) (string, error),
) (string, int, error) {

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var sig string
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return sig, attempt - 1, ctx.Err()
			case <-time.After(p.Backoff):
			}
			if p.BeforeRetry != nil {
				p.BeforeRetry(ctx, attempt)
			}
			if p.Logger != nil {
				p.Logger.WithField("attempt", attempt).Warn("retrying swap leg")
			}
		}

		sig, err = fn(ctx)
		if err == nil || sig != "" {
			return sig, attempt, err
		}
	}

	return sig, attempts, err
}
