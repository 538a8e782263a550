package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// userAgent identifies us honestly to the boards that allow polling.
const userAgent = "jobsift/1.0 (+https://github.com/jobsift/jobsift)"

// get issues a GET with context and the shared User-Agent, classifying the
// response status into the adapter failure taxonomy. A non-nil response is
// only returned on 200; the caller owns closing its body.
func get(ctx context.Context, client *http.Client, platform, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", platform, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html, application/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.AdapterError{
			Platform: platform,
			Kind:     model.FailureUnreachable,
			Err:      err,
		}
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	return nil, classifyStatus(platform, resp)
}

// classifyStatus maps a non-200 response to a failure kind:
// 429 is rate limiting (with Retry-After honored), 5xx is unreachable,
// 403/challenge pages count as bot detection, anything else is a
// structural mismatch that retrying will not fix.
func classifyStatus(platform string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &model.AdapterError{
			Platform:   platform,
			Kind:       model.FailureRateLimited,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	case resp.StatusCode >= 500:
		return &model.AdapterError{
			Platform: platform,
			Kind:     model.FailureUnreachable,
			Err:      fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusForbidden:
		return &model.AdapterError{
			Platform: platform,
			Kind:     model.FailureChallenge,
			Err:      fmt.Errorf("HTTP %d (possible bot challenge)", resp.StatusCode),
		}
	default:
		return &model.AdapterError{
			Platform: platform,
			Kind:     model.FailureParse,
			Err:      fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}
}

// parseErr wraps a body/decode failure as a non-transient parse error.
func parseErr(platform string, err error) error {
	return &model.AdapterError{
		Platform: platform,
		Kind:     model.FailureParse,
		Err:      err,
	}
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// postedSince reports whether a listing's posted time passes the since
// cursor. Listings with no timestamp always pass; dropping them would lose
// boards that omit dates entirely.
func postedSince(postedAt *time.Time, since time.Time) bool {
	if postedAt == nil || since.IsZero() {
		return true
	}
	return !postedAt.Before(since)
}
