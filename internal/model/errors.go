package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies adapter failures for retry and breaker decisions.
type FailureKind int

const (
	// FailureRateLimited means the platform throttled us (HTTP 429). Transient.
	FailureRateLimited FailureKind = iota
	// FailureUnreachable means the platform could not be reached or returned
	// a server error. Transient.
	FailureUnreachable
	// FailureParse means the response did not match the expected structure,
	// usually because the source changed its page or API shape. Retrying
	// will not help; surfaces immediately.
	FailureParse
	// FailureChallenge means the platform answered with a bot-challenge or
	// verification page. Non-transient and breaker-counted on sight.
	FailureChallenge
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate-limited"
	case FailureUnreachable:
		return "unreachable"
	case FailureParse:
		return "parse-error"
	case FailureChallenge:
		return "challenge"
	default:
		return "unknown"
	}
}

// AdapterError wraps a platform fetch failure with its classification so the
// retry and breaker layers can inspect it.
type AdapterError struct {
	Platform   string
	Kind       FailureKind
	RetryAfter time.Duration // from a Retry-After header, zero if absent
	Err        error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Kind)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying.
func (e *AdapterError) Transient() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureUnreachable
}

// IsTransient reports whether err is a transient adapter failure. Unknown
// (non-AdapterError) errors are treated as transient network trouble, except
// context cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	return true
}

// IncompleteDataError marks a listing whose mandatory fields (title, company)
// could not be extracted. The listing is dropped from the run with a logged
// reason; it never fails the run.
type IncompleteDataError struct {
	Platform string
	Missing  string // name of the missing field
	URL      string
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("%s: listing missing %s (%s)", e.Platform, e.Missing, e.URL)
}
