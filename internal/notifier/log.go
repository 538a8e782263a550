package notifier

import (
	"log/slog"

	"github.com/jobsift/jobsift/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes events to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each event via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event. Alert-class events (breaker-open, zero-yield) log
// at warning level; the rest at info. Returns nil (stdout logging does not
// fail).
func (n *LogNotifier) Notify(event model.Event) error {
	args := []any{"kind", string(event.Kind)}
	if event.Platform != "" {
		args = append(args, "platform", event.Platform)
	}
	if event.Message != "" {
		args = append(args, "message", event.Message)
	}

	switch event.Kind {
	case model.EventBreakerOpen, model.EventZeroYield:
		n.logger.Warn("ingestion alert", args...)
	case model.EventNewPostings:
		for _, p := range event.Postings {
			n.logger.Info("new job posting",
				"company", p.Company,
				"title", p.Title,
				"location", p.Location,
				"source", p.Source,
				"url", p.URL,
			)
		}
	default:
		n.logger.Info("ingestion event", args...)
	}
	return nil
}
