package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobsift ingestion daemon.
type Config struct {
	Schedule    string // cron spec for ingestion runs, e.g. "@every 6h"
	RunTimeout  time.Duration
	Concurrency int // max adapters fetching in parallel
	Retention   time.Duration
	DBPath      string
	Platforms   []PlatformConfig
	Retry       RetryConfig
	Breaker     BreakerConfig
	RateLimit   RateLimitConfig
	Normalize   NormalizeConfig
	Notification NotificationConfig
	Health      HealthConfig
}

// PlatformConfig describes a single job board source.
type PlatformConfig struct {
	Name        string `yaml:"name"`    // "remoteok", "weworkremotely", "himalayas", "indeed", "linkedin"
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`  // override for tests/mirrors; adapters default it
	Query       string `yaml:"query"`     // search query for query-driven boards (indeed)
	RiskBreaker bool   `yaml:"risk_breaker"` // use the exponential platform-risk cooldown policy
	// LinkedIn-specific sources.
	MailDir string `yaml:"mail_dir"` // directory of forwarded alert e-mails (.eml)
	URLFile string `yaml:"url_file"` // manually pasted job URLs, one per line
	// Policy gate for any future browser-based variant; parsed and enforced
	// as configuration so enabling it is an explicit opt-in.
	BrowserOptIn  bool `yaml:"browser_opt_in"`
	DailyCeiling  int  `yaml:"daily_ceiling"`
	BusinessHours bool `yaml:"business_hours_only"`
}

// RetryConfig controls the transient-failure retry policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxElapsed  time.Duration // wall-clock ceiling per operation
}

// BreakerConfig controls both breaker policies. The generic policy applies a
// fixed cooldown; platforms flagged risk_breaker get the exponential ladder.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration   // generic fixed cooldown
	RiskCooldowns    []time.Duration // exponential ladder for risk platforms
}

// RateLimitConfig enforces a minimum gap between requests to the same platform.
type RateLimitConfig struct {
	MinDelay  time.Duration
	Overrides map[string]time.Duration // per-platform, keyed by platform name
}

// MinDelayFor returns the configured delay for the given platform, falling
// back to MinDelay.
func (r RateLimitConfig) MinDelayFor(platform string) time.Duration {
	if d, ok := r.Overrides[platform]; ok {
		return d
	}
	return r.MinDelay
}

// NormalizeConfig carries the externally supplied lookup tables.
type NormalizeConfig struct {
	Countries        map[string]string  `yaml:"countries"`         // lower-cased source string -> canonical country
	TechSynonyms     map[string]string  `yaml:"tech_synonyms"`     // lower-cased alias -> canonical technology
	ExchangeRates    map[string]float64 `yaml:"exchange_rates"`    // currency code -> units per reference currency
	ReferenceCurrency string            `yaml:"reference_currency"`
}

// NotificationConfig selects the notifier and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// HealthConfig controls the status HTTP server.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	Schedule     string             `yaml:"schedule"`
	RunTimeout   string             `yaml:"run_timeout"`
	Concurrency  int                `yaml:"concurrency"`
	Retention    string             `yaml:"retention"`
	DBPath       string             `yaml:"db_path"`
	Platforms    []PlatformConfig   `yaml:"platforms"`
	Retry        rawRetryConfig     `yaml:"retry"`
	Breaker      rawBreakerConfig   `yaml:"breaker"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Normalize    NormalizeConfig    `yaml:"normalize"`
	Notification NotificationConfig `yaml:"notification"`
	Health       HealthConfig       `yaml:"health"`
}

type rawRetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxElapsed  string `yaml:"max_elapsed"`
}

type rawBreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Cooldown         string   `yaml:"cooldown"`
	RiskCooldowns    []string `yaml:"risk_cooldowns"`
}

type rawRateLimitConfig struct {
	MinDelay  string            `yaml:"min_delay"`
	Overrides map[string]string `yaml:"overrides"`
}

// Load reads and parses the YAML config file at path, applies defaults,
// validates, and returns Config. Environment variables in the file are
// expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Schedule:     raw.Schedule,
		Concurrency:  raw.Concurrency,
		DBPath:       raw.DBPath,
		Platforms:    raw.Platforms,
		Normalize:    raw.Normalize,
		Notification: raw.Notification,
		Health:       raw.Health,
	}

	if cfg.Schedule == "" {
		cfg.Schedule = "@every 6h"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "jobsift.db"
	}
	if cfg.Normalize.ReferenceCurrency == "" {
		cfg.Normalize.ReferenceCurrency = "USD"
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8090"
	}

	cfg.RunTimeout, err = parseDurationDefault(raw.RunTimeout, "run_timeout", 60*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Retention, err = parseDurationDefault(raw.Retention, "retention", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.Retry.MaxAttempts = raw.Retry.MaxAttempts
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	cfg.Retry.BaseDelay, err = parseDurationDefault(raw.Retry.BaseDelay, "retry.base_delay", 1*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Retry.MaxElapsed, err = parseDurationDefault(raw.Retry.MaxElapsed, "retry.max_elapsed", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.Breaker.FailureThreshold = raw.Breaker.FailureThreshold
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 3
	}
	cfg.Breaker.Cooldown, err = parseDurationDefault(raw.Breaker.Cooldown, "breaker.cooldown", 1*time.Hour)
	if err != nil {
		return nil, err
	}
	if len(raw.Breaker.RiskCooldowns) == 0 {
		cfg.Breaker.RiskCooldowns = []time.Duration{24 * time.Hour, 48 * time.Hour, 96 * time.Hour}
	} else {
		for i, s := range raw.Breaker.RiskCooldowns {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("parse breaker.risk_cooldowns[%d] %q: %w", i, s, err)
			}
			cfg.Breaker.RiskCooldowns = append(cfg.Breaker.RiskCooldowns, d)
		}
	}

	cfg.RateLimit.MinDelay, err = parseDurationDefault(raw.RateLimit.MinDelay, "rate_limit.min_delay", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit.Overrides = make(map[string]time.Duration)
	for platform, s := range raw.RateLimit.Overrides {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.overrides[%q]: %w", platform, err)
		}
		cfg.RateLimit.Overrides[platform] = d
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDurationDefault(s, field string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	enabled := 0
	for _, p := range cfg.Platforms {
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one platform must be enabled")
	}

	for _, p := range cfg.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platform name must not be empty")
		}
		if p.Name == "linkedin" && p.BrowserOptIn {
			if p.DailyCeiling <= 0 || p.DailyCeiling > 40 {
				return fmt.Errorf("linkedin.daily_ceiling must be between 1 and 40 when browser_opt_in is set, got %d", p.DailyCeiling)
			}
		}
	}

	if cfg.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %v", cfg.RunTimeout)
	}

	if cfg.Notification.Type == "slack" && cfg.Notification.WebhookURL == "" {
		return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
	}

	for code, rate := range cfg.Normalize.ExchangeRates {
		if rate <= 0 {
			return fmt.Errorf("normalize.exchange_rates[%q] must be positive, got %v", code, rate)
		}
	}

	return nil
}
