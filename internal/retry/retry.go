package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// Policy holds the retry parameters for transient adapter failures.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry, doubled each retry
	MaxElapsed  time.Duration // wall-clock ceiling per operation
}

// DefaultPolicy is 3 attempts with 1s/2s/4s backoff capped at 30s elapsed.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxElapsed:  30 * time.Second,
	}
}

// Adapter is a decorator that retries transient failures with exponential
// backoff and jitter before delegating to the wrapped SourceAdapter.
// Non-transient failures (parse errors, bot challenges) return immediately
// without consuming retry budget.
type Adapter struct {
	inner  model.SourceAdapter
	policy Policy
	logger *slog.Logger
}

var _ model.SourceAdapter = (*Adapter)(nil)

// Wrap returns inner with retry behavior applied.
func Wrap(inner model.SourceAdapter, policy Policy, logger *slog.Logger) *Adapter {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Adapter{inner: inner, policy: policy, logger: logger}
}

func (a *Adapter) Platform() string {
	return a.inner.Platform()
}

// Fetch attempts the inner fetch, retrying transient failures until the
// attempt budget or the elapsed-time ceiling runs out.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	start := time.Now()

	listings, err := a.inner.Fetch(ctx, since)
	if err == nil {
		return listings, nil
	}
	if !model.IsTransient(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt < a.policy.MaxAttempts; attempt++ {
		delay := a.backoffDelay(attempt, lastErr)

		if time.Since(start)+delay > a.policy.MaxElapsed {
			a.logger.Warn("retry budget exhausted by elapsed-time ceiling",
				"platform", a.Platform(),
				"elapsed", time.Since(start),
				"ceiling", a.policy.MaxElapsed,
			)
			return nil, lastErr
		}

		a.logger.Warn("retrying after transient error",
			"platform", a.Platform(),
			"attempt", attempt,
			"max_attempts", a.policy.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		listings, err = a.inner.Fetch(ctx, since)
		if err == nil {
			return listings, nil
		}
		if !model.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// backoffDelay computes the delay for a given attempt with ±20% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes
// precedence over the computed backoff.
func (a *Adapter) backoffDelay(attempt int, err error) time.Duration {
	var ae *model.AdapterError
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		return ae.RetryAfter
	}

	// Exponential: BaseDelay * 2^(attempt-1)
	delay := a.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.2
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}
