package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends ingestion events to a Slack channel via Incoming
// Webhooks. Alerts go out as single messages; new-posting batches send one
// message per posting with a small gap to stay under webhook limits.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts events to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify delivers the event. For posting batches an error is returned only
// if ALL messages fail; individual failures are logged.
func (s *SlackNotifier) Notify(event model.Event) error {
	if event.Kind != model.EventNewPostings {
		return s.send(alertPayload(event))
	}

	if len(event.Postings) == 0 {
		return nil
	}

	failures := 0
	for i, p := range event.Postings {
		if i > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		if err := s.send(postingPayload(p)); err != nil {
			s.logger.Error("slack notification failed", "company", p.Company, "title", p.Title, "error", err)
			failures++
		}
	}

	if failures == len(event.Postings) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", len(event.Postings)-failures, "failed", failures)
	return nil
}

func (s *SlackNotifier) send(payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// alertPayload builds a Block Kit message for alert-class events.
func alertPayload(event model.Event) map[string]any {
	header := "Ingestion event"
	switch event.Kind {
	case model.EventBreakerOpen:
		header = fmt.Sprintf(":rotating_light: Circuit open: %s", event.Platform)
	case model.EventZeroYield:
		header = ":warning: Zero jobs ingested"
	case model.EventRunDegraded:
		header = ":warning: Degraded ingestion run"
	}

	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": header, "emoji": true},
			},
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": event.Message},
			},
		},
	}
}

// postingPayload builds a Block Kit message for one new posting.
func postingPayload(p model.JobPosting) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Company:*\n%s", p.Company)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Location:*\n%s", p.Location)},
	}
	if !p.Salary.Unspecified {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Salary:*\n%.0f–%.0f %s/%s", p.Salary.Min, p.Salary.Max, p.Salary.Currency, p.Salary.Period),
		})
	}
	fields = append(fields, map[string]any{
		"type": "mrkdwn", "text": fmt.Sprintf("*Source:*\n%s", p.Source),
	})

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": p.Title, "emoji": true},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}
	if p.URL != "" {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("<%s|Apply>", p.URL)},
		})
	}
	return map[string]any{"blocks": blocks}
}
