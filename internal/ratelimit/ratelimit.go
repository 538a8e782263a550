package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// PlatformLimiter enforces a minimum delay between requests to the same
// platform, with per-platform overrides. All adapters share one instance so
// retries and scheduled runs observe the same gap.
type PlatformLimiter struct {
	mu        sync.Mutex
	lastCall  map[string]time.Time
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewPlatformLimiter creates a limiter enforcing minDelay between
// consecutive requests to the same platform.
func NewPlatformLimiter(minDelay time.Duration, overrides map[string]time.Duration) *PlatformLimiter {
	return &PlatformLimiter{
		lastCall:  make(map[string]time.Time),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (r *PlatformLimiter) delayFor(platform string) time.Duration {
	if d, ok := r.overrides[platform]; ok {
		return d
	}
	return r.minDelay
}

// Wait blocks until enough time has passed since the last request to the
// given platform. Returns an error if the context is cancelled while waiting.
func (r *PlatformLimiter) Wait(ctx context.Context, platform string) error {
	r.mu.Lock()
	last, ok := r.lastCall[platform]
	now := time.Now()

	if !ok || now.Sub(last) >= r.delayFor(platform) {
		r.lastCall[platform] = now
		r.mu.Unlock()
		return nil
	}

	remaining := r.delayFor(platform) - now.Sub(last)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", platform, ctx.Err())
	case <-time.After(remaining):
	}

	r.mu.Lock()
	r.lastCall[platform] = time.Now()
	r.mu.Unlock()
	return nil
}

// Adapter wraps a SourceAdapter so every fetch first waits on the shared
// limiter.
type Adapter struct {
	inner   model.SourceAdapter
	limiter *PlatformLimiter
}

var _ model.SourceAdapter = (*Adapter)(nil)

// Wrap returns inner gated by limiter.
func Wrap(inner model.SourceAdapter, limiter *PlatformLimiter) *Adapter {
	return &Adapter{inner: inner, limiter: limiter}
}

func (a *Adapter) Platform() string { return a.inner.Platform() }

func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	if err := a.limiter.Wait(ctx, a.inner.Platform()); err != nil {
		return nil, err
	}
	return a.inner.Fetch(ctx, since)
}
