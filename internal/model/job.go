package model

import (
	"context"
	"strings"
	"time"
)

// RemoteSentinel is the canonical location value for fully remote postings.
const RemoteSentinel = "Remote"

// ExperienceLevel is the seniority bucket derived from title/description heuristics.
type ExperienceLevel string

const (
	ExperienceJunior  ExperienceLevel = "junior"
	ExperienceMid     ExperienceLevel = "mid"
	ExperienceSenior  ExperienceLevel = "senior"
	ExperienceLead    ExperienceLevel = "lead"
	ExperienceUnknown ExperienceLevel = "unknown"
)

// RawListing is what a source adapter returns: the platform's own shape,
// lightly flattened, before any normalization.
type RawListing struct {
	Platform    string // adapter name, e.g. "remoteok"
	ExternalID  string // platform-side identifier, may be empty
	Title       string
	Company     string
	Location    string // free text, often empty for remote boards
	Description string
	SalaryText  string   // raw salary string ("$90k-$120k", "Competitive")
	Tags        []string // raw technology/category tags
	URL         string   // application link
	PostedAt    *time.Time
}

// Salary is a normalized salary range. Unspecified is true when the source
// gave no parseable figure ("Competitive", "DOE", empty); amounts are only
// meaningful when Unspecified is false. Unspecified salaries never coerce
// to zero so numeric filters cannot match them by accident.
type Salary struct {
	Min         float64
	Max         float64
	Currency    string // reference currency after conversion
	Period      string // "year", "month", "hour"
	Unspecified bool
}

// JobPosting is the canonical, deduplicated unit stored for the user.
// Identity is the case-insensitive (Title, Company) natural key; ID is a
// synthetic identifier assigned on first insertion and stable across
// re-scrapes that resolve to the same key.
type JobPosting struct {
	ID                    string
	Title                 string
	Company               string
	Location              string // canonical country name or RemoteSentinel
	LowConfidenceLocation bool   // set when no lookup-table entry matched and the raw string was kept
	Salary                Salary
	Description           string
	Technologies          []string // canonical technology names
	Experience            ExperienceLevel
	PostedAt              *time.Time
	Source                string // platform that produced the winning record
	URL                   string
	FirstSeen             time.Time
	LastSeen              time.Time
	Saved                 bool
}

// NaturalKey returns the case-insensitive (title, company) dedup key.
func (p JobPosting) NaturalKey() (title, company string) {
	return NormalizeKeyPart(p.Title), NormalizeKeyPart(p.Company)
}

// NormalizeKeyPart canonicalizes one half of a natural key: lower-cased,
// whitespace collapsed and trimmed.
func NormalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AdapterOutcome describes how a single adapter finished within a run.
type AdapterOutcome string

const (
	OutcomeSuccess        AdapterOutcome = "success"
	OutcomeFailure        AdapterOutcome = "failure"
	OutcomeSkippedBreaker AdapterOutcome = "skipped-breaker"
)

// AdapterResult is the per-platform slice of an IngestionRun summary.
type AdapterResult struct {
	Platform string
	Outcome  AdapterOutcome
	Fetched  int
	Err      string // empty unless Outcome is OutcomeFailure
}

// IngestionRun is the immutable record of one scheduled fan-out across all
// configured sources, finalized once every adapter reached a terminal state.
type IngestionRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Adapters   []AdapterResult
	RawCount   int // total raw listings fetched
	Normalized int // listings that survived normalization
	Deduped    int // distinct postings after within-run dedup
	Inserted   int // new postings
	Updated    int // existing postings refreshed/merged
}

// ZeroYield reports whether the run produced no records at all, the one
// condition that escalates to a hard alert.
func (r IngestionRun) ZeroYield() bool {
	return r.RawCount == 0
}

// Degraded reports whether at least one adapter failed or was skipped while
// the run as a whole still proceeded.
func (r IngestionRun) Degraded() bool {
	for _, a := range r.Adapters {
		if a.Outcome != OutcomeSuccess {
			return true
		}
	}
	return false
}

// SourceAdapter fetches raw listings from one platform. Fetch returns
// listings posted at or after since; adapters without server-side filtering
// filter client-side. Adapters perform network I/O only and never mutate
// shared state.
type SourceAdapter interface {
	Platform() string
	Fetch(ctx context.Context, since time.Time) ([]RawListing, error)
}

// UpsertResult tells the caller whether an upsert created a new row.
type UpsertResult string

const (
	UpsertInserted UpsertResult = "inserted"
	UpsertUpdated  UpsertResult = "updated"
)

// JobStore is the durable record of normalized, deduplicated postings.
type JobStore interface {
	FindByNaturalKey(title, company string) (*JobPosting, error)
	Upsert(posting JobPosting) (UpsertResult, error)
	SetSaved(id string, saved bool) error
	List(limit int) ([]JobPosting, error)
	ExpireUnsaved(olderThan time.Duration) (int64, error)
}

// BreakerState is the circuit breaker position for one platform.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// SourceAdapterState is the persisted breaker record for one platform, so
// an open circuit survives process restarts.
type SourceAdapterState struct {
	Platform      string
	Failures      int // consecutive failures
	State         BreakerState
	OpenCount     int // consecutive opens without a close; drives exponential cooldowns
	CooldownUntil time.Time
	LastSuccess   time.Time
}

// AdapterStateStore persists SourceAdapterState across restarts.
type AdapterStateStore interface {
	LoadAdapterStates() (map[string]SourceAdapterState, error)
	SaveAdapterState(state SourceAdapterState) error
}

// RunStore persists finalized IngestionRun summaries.
type RunStore interface {
	SaveRun(run IngestionRun) error
	LastRun() (*IngestionRun, error)
}

// EventKind classifies notifications sent to the external sink.
type EventKind string

const (
	EventBreakerOpen EventKind = "breaker-open"
	EventZeroYield   EventKind = "zero-yield"
	EventRunDegraded EventKind = "run-degraded"
	EventNewPostings EventKind = "new-postings"
)

// Event is a notification payload. Platform is set for adapter-scoped
// events; Postings is set for EventNewPostings.
type Event struct {
	Kind     EventKind
	Platform string
	Message  string
	Postings []JobPosting
}

// Notifier delivers events to the user (log line, Slack webhook, ...).
type Notifier interface {
	Notify(event Event) error
}
