package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAdapter calls a function on each invocation, tracking call count.
type mockAdapter struct {
	calls int
	fn    func(attempt int) ([]model.RawListing, error)
}

func (m *mockAdapter) Platform() string { return "mock" }

func (m *mockAdapter) Fetch(_ context.Context, _ time.Time) ([]model.RawListing, error) {
	m.calls++
	return m.fn(m.calls)
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxElapsed: time.Second}
}

func transientErr() error {
	return &model.AdapterError{Platform: "mock", Kind: model.FailureUnreachable, Err: errors.New("connection refused")}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	listings := []model.RawListing{{Platform: "mock", Title: "Engineer", Company: "Acme"}}
	mock := &mockAdapter{fn: func(_ int) ([]model.RawListing, error) {
		return listings, nil
	}}

	ra := Wrap(mock, fastPolicy(), discardLogger())
	got, err := ra.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Engineer" {
		t.Fatalf("unexpected listings: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesTransient_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockAdapter{fn: func(attempt int) ([]model.RawListing, error) {
		if attempt == 1 {
			return nil, transientErr()
		}
		return []model.RawListing{{Title: "Engineer"}}, nil
	}}

	ra := Wrap(mock, fastPolicy(), discardLogger())
	got, err := ra.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_MakesExactlyThreeAttemptsThenGivesUp(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawListing, error) {
		return nil, transientErr()
	}}

	ra := Wrap(mock, fastPolicy(), discardLogger())
	_, err := ra.Fetch(context.Background(), time.Time{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if mock.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryParseErrors(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawListing, error) {
		return nil, &model.AdapterError{Platform: "mock", Kind: model.FailureParse, Err: errors.New("layout changed")}
	}}

	ra := Wrap(mock, fastPolicy(), discardLogger())
	_, err := ra.Fetch(context.Background(), time.Time{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ae *model.AdapterError
	if !errors.As(err, &ae) || ae.Kind != model.FailureParse {
		t.Fatalf("expected parse error to surface unchanged, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call for non-transient failure, got %d", mock.calls)
	}
}

func TestRetry_RespectsElapsedCeiling(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawListing, error) {
		return nil, transientErr()
	}}

	// Ceiling small enough that no retry delay fits.
	policy := Policy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxElapsed: 10 * time.Millisecond}
	ra := Wrap(mock, policy, discardLogger())

	start := time.Now()
	_, err := ra.Fetch(context.Background(), time.Time{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("gave up too slowly: %v", elapsed)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call when ceiling forbids retries, got %d", mock.calls)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	mock := &mockAdapter{fn: func(attempt int) ([]model.RawListing, error) {
		if attempt == 1 {
			return nil, &model.AdapterError{
				Platform:   "mock",
				Kind:       model.FailureRateLimited,
				RetryAfter: 20 * time.Millisecond,
			}
		}
		return nil, nil
	}}

	ra := Wrap(mock, fastPolicy(), discardLogger())
	start := time.Now()
	if _, err := ra.Fetch(context.Background(), time.Time{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected at least the Retry-After delay, waited only %v", elapsed)
	}
}

func TestRetry_CancelledContextStopsRetrying(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.RawListing, error) {
		return nil, transientErr()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Policy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxElapsed: time.Second}
	ra := Wrap(mock, policy, discardLogger())
	_, err := ra.Fetch(ctx, time.Time{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
