package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

func TestWait_FirstCallIsImmediate(t *testing.T) {
	l := NewPlatformLimiter(time.Second, nil)

	start := time.Now()
	if err := l.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first call should not wait, took %v", elapsed)
	}
}

func TestWait_EnforcesMinDelayPerPlatform(t *testing.T) {
	l := NewPlatformLimiter(50*time.Millisecond, nil)

	if err := l.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("second call should have waited, took %v", elapsed)
	}
}

func TestWait_PlatformsAreIndependent(t *testing.T) {
	l := NewPlatformLimiter(time.Second, nil)

	if err := l.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background(), "himalayas"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("different platform should not wait, took %v", elapsed)
	}
}

func TestWait_OverrideTakesPrecedence(t *testing.T) {
	l := NewPlatformLimiter(time.Hour, map[string]time.Duration{"linkedin": 10 * time.Millisecond})

	if err := l.Wait(context.Background(), "linkedin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := l.Wait(context.Background(), "linkedin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("override delay not honored, took %v", elapsed)
	}
}

func TestWait_CancelledContext(t *testing.T) {
	l := NewPlatformLimiter(time.Hour, nil)

	if err := l.Wait(context.Background(), "remoteok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "remoteok"); err == nil {
		t.Fatal("expected context error while waiting")
	}
}

type nopAdapter struct{ fetches int }

func (n *nopAdapter) Platform() string { return "remoteok" }

func (n *nopAdapter) Fetch(context.Context, time.Time) ([]model.RawListing, error) {
	n.fetches++
	return nil, nil
}

func TestAdapter_WaitsBeforeFetching(t *testing.T) {
	inner := &nopAdapter{}
	l := NewPlatformLimiter(30*time.Millisecond, nil)
	a := Wrap(inner, l)

	if a.Platform() != "remoteok" {
		t.Fatalf("platform must pass through, got %q", a.Platform())
	}

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := a.Fetch(context.Background(), time.Time{}); err != nil {
			t.Fatalf("fetch %d: %v", i+1, err)
		}
	}
	if inner.fetches != 2 {
		t.Fatalf("expected 2 inner fetches, got %d", inner.fetches)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("expected the gap enforced between fetches, took %v", elapsed)
	}
}
