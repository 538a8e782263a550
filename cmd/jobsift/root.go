package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/adapter"
	"github.com/jobsift/jobsift/internal/breaker"
	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/normalize"
	"github.com/jobsift/jobsift/internal/notifier"
	"github.com/jobsift/jobsift/internal/ratelimit"
	"github.com/jobsift/jobsift/internal/retry"
	"github.com/jobsift/jobsift/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsift",
	Short: "Remote job ingestion: every board, one deduplicated feed",
	Long:  "jobsift pulls remote job postings from multiple boards, normalizes and deduplicates them into a local store, and alerts you to new matches.",
	// Default to `run` so that `jobsift` with no args runs the daemon.
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIFT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSIFT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSIFT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// createAdapter builds the raw adapter for one platform config.
func createAdapter(p config.PlatformConfig, httpClient *http.Client, logger *slog.Logger) (model.SourceAdapter, bool) {
	switch p.Name {
	case "remoteok":
		return adapter.NewRemoteOKAdapter(p.BaseURL, httpClient), true
	case "weworkremotely":
		return adapter.NewWeWorkRemotelyAdapter(p.BaseURL, httpClient), true
	case "himalayas":
		return adapter.NewHimalayasAdapter(p.BaseURL, httpClient), true
	case "indeed":
		return adapter.NewIndeedAdapter(p.BaseURL, p.Query, httpClient), true
	case "linkedin":
		return adapter.NewLinkedInAdapter(p.MailDir, p.URLFile, logger), true
	default:
		logger.Warn("unsupported platform, skipping", "platform", p.Name)
		return nil, false
	}
}

// buildPipeline wires the full ingestion stack: adapters wrapped with rate
// limiting and retry, breakers resumed from the store, the normalizer, and
// the runner.
func buildPipeline(cfg *config.Config, st *store.SQLiteStore, n model.Notifier, httpClient *http.Client, logger *slog.Logger) (*ingest.Runner, *breaker.Registry, error) {
	limiter := ratelimit.NewPlatformLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.Overrides)
	retryPolicy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxElapsed:  cfg.Retry.MaxElapsed,
	}

	var adapters []model.SourceAdapter
	policies := make(map[string]breaker.CooldownPolicy)
	for _, p := range cfg.Platforms {
		if !p.Enabled {
			continue
		}

		raw, ok := createAdapter(p, httpClient, logger)
		if !ok {
			continue
		}

		wrapped := retry.Wrap(ratelimit.Wrap(raw, limiter), retryPolicy, logger)
		adapters = append(adapters, wrapped)
		policies[p.Name] = breaker.PolicyFor(p.RiskBreaker, cfg.Breaker.Cooldown, cfg.Breaker.RiskCooldowns)
		logger.Info("registered platform", "name", p.Name, "risk_breaker", p.RiskBreaker)
	}

	breakers, err := breaker.NewRegistry(policies, cfg.Breaker.FailureThreshold, st, n, logger)
	if err != nil {
		return nil, nil, err
	}

	runner := ingest.NewRunner(
		adapters,
		breakers,
		normalize.New(cfg.Normalize, logger),
		st,
		st,
		n,
		ingest.Options{
			Concurrency: cfg.Concurrency,
			RunTimeout:  cfg.RunTimeout,
			Retention:   cfg.Retention,
		},
		logger,
	)
	return runner, breakers, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
