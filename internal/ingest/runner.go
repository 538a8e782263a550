// Package ingest owns one full ingestion run: fan-out to every configured
// source adapter, aggregation of whatever came back, normalization, dedup,
// reconciliation against the store, and the finalized run summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jobsift/jobsift/internal/breaker"
	"github.com/jobsift/jobsift/internal/dedupe"
	"github.com/jobsift/jobsift/internal/model"
)

// normalizer is the slice of the normalize package the runner needs.
type normalizer interface {
	Normalize(raw model.RawListing) (model.JobPosting, error)
}

// Options bound a run's resource usage.
type Options struct {
	Concurrency    int           // max adapters fetching in parallel
	RunTimeout     time.Duration // wall-clock budget for the whole run
	AdapterTimeout time.Duration // budget per adapter call
	Retention      time.Duration // unsaved postings older than this expire after the run
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 60 * time.Minute
	}
	if o.AdapterTimeout <= 0 {
		o.AdapterTimeout = 15 * time.Minute
	}
}

// Runner executes ingestion runs. Adapters are expected to arrive already
// wrapped with rate limiting and retry; the runner adds the breaker gate,
// per-call timeouts, and the fan-in.
type Runner struct {
	adapters   []model.SourceAdapter
	breakers   *breaker.Registry
	normalizer normalizer
	store      model.JobStore
	runs       model.RunStore
	notifier   model.Notifier
	logger     *slog.Logger
	opts       Options

	mu     sync.Mutex // guards active
	active bool
}

// NewRunner wires a runner with all its dependencies.
func NewRunner(
	adapters []model.SourceAdapter,
	breakers *breaker.Registry,
	n normalizer,
	store model.JobStore,
	runs model.RunStore,
	notify model.Notifier,
	opts Options,
	logger *slog.Logger,
) *Runner {
	opts.defaults()
	return &Runner{
		adapters:   adapters,
		breakers:   breakers,
		normalizer: n,
		store:      store,
		runs:       runs,
		notifier:   notify,
		logger:     logger,
		opts:       opts,
	}
}

// ErrRunActive is returned when a run is triggered while one is in flight.
// Overlapping runs would race the per-adapter breaker counters, so ticks
// that fire early are skipped instead of queued.
var ErrRunActive = errors.New("ingestion run already active")

// fetchResult carries one adapter's terminal state back through the fan-in.
type fetchResult struct {
	platform string
	outcome  model.AdapterOutcome
	listings []model.RawListing
	err      error
}

// Run executes one full ingestion cycle and returns the finalized summary.
// A single adapter failing never fails the run; the one hard-alert
// condition is total zero yield across all adapters.
func (r *Runner) Run(ctx context.Context) (*model.IngestionRun, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil, ErrRunActive
	}
	r.active = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	run := &model.IngestionRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	since := r.sinceCursor()

	runCtx, cancel := context.WithTimeout(ctx, r.opts.RunTimeout)
	defer cancel()

	results := r.fanOut(runCtx, since)

	var raw []model.RawListing
	for _, res := range results {
		run.Adapters = append(run.Adapters, model.AdapterResult{
			Platform: res.platform,
			Outcome:  res.outcome,
			Fetched:  len(res.listings),
			Err:      errString(res.err),
		})
		raw = append(raw, res.listings...)
	}
	run.RawCount = len(raw)

	postings, normalized := r.aggregate(raw)
	run.Normalized = normalized
	run.Deduped = len(postings)

	inserted := r.reconcile(postings, run)

	run.FinishedAt = time.Now()
	r.finalize(run, inserted)

	return run, nil
}

// fanOut triggers every adapter concurrently, bounded by Concurrency, and
// waits for all of them to reach a terminal state: success, terminal
// failure, or breaker skip. Results arrive in completion order; the
// aggregation below is order-independent.
func (r *Runner) fanOut(ctx context.Context, since time.Time) []fetchResult {
	results := make([]fetchResult, len(r.adapters))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for i, a := range r.adapters {
		g.Go(func() error {
			results[i] = r.fetchOne(ctx, a, since)
			return nil
		})
	}
	g.Wait()

	return results
}

// fetchOne runs a single adapter behind its breaker with its own timeout.
func (r *Runner) fetchOne(ctx context.Context, a model.SourceAdapter, since time.Time) fetchResult {
	platform := a.Platform()
	br := r.breakers.Get(platform)

	if br != nil {
		if err := br.Allow(); err != nil {
			r.logger.Info("skipping platform, breaker open", "platform", platform)
			return fetchResult{platform: platform, outcome: model.OutcomeSkippedBreaker}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.opts.AdapterTimeout)
	defer cancel()

	listings, err := a.Fetch(callCtx, since)
	if br != nil {
		br.Record(err)
	}

	if err != nil {
		r.logger.Error("adapter fetch failed", "platform", platform, "error", err)
		return fetchResult{platform: platform, outcome: model.OutcomeFailure, err: err}
	}

	r.logger.Info("adapter fetch complete", "platform", platform, "fetched", len(listings))
	return fetchResult{platform: platform, outcome: model.OutcomeSuccess, listings: listings}
}

// aggregate normalizes the raw listings, dropping incomplete ones with a
// logged reason, then collapses duplicates found within this run.
func (r *Runner) aggregate(raw []model.RawListing) ([]model.JobPosting, int) {
	var postings []model.JobPosting
	normalized := 0

	for _, listing := range raw {
		posting, err := r.normalizer.Normalize(listing)
		if err != nil {
			var incomplete *model.IncompleteDataError
			if errors.As(err, &incomplete) {
				r.logger.Warn("dropping incomplete listing",
					"platform", incomplete.Platform,
					"missing", incomplete.Missing,
					"url", incomplete.URL,
				)
				continue
			}
			r.logger.Error("normalization failed", "platform", listing.Platform, "error", err)
			continue
		}
		normalized++
		postings = append(postings, posting)
	}

	return dedupe.Collapse(postings), normalized
}

// reconcile merges each deduplicated posting into the store and returns the
// newly inserted records for notification.
func (r *Runner) reconcile(postings []model.JobPosting, run *model.IngestionRun) []model.JobPosting {
	var inserted []model.JobPosting

	for _, p := range postings {
		existing, err := r.store.FindByNaturalKey(p.Title, p.Company)
		if err != nil {
			r.logger.Error("store lookup failed", "title", p.Title, "company", p.Company, "error", err)
			continue
		}

		decision, merged := dedupe.Reconcile(p, existing)

		result, err := r.store.Upsert(merged)
		if err != nil {
			r.logger.Error("store upsert failed", "title", p.Title, "company", p.Company, "error", err)
			continue
		}

		switch result {
		case model.UpsertInserted:
			run.Inserted++
			inserted = append(inserted, merged)
		case model.UpsertUpdated:
			run.Updated++
		}
		if decision == dedupe.UpdateLastSeen {
			r.logger.Debug("refreshed posting", "title", merged.Title, "company", merged.Company)
		}
	}

	return inserted
}

// finalize persists the run summary, expires stale unsaved postings, and
// emits notifications. Alert escalation is deliberately narrow: zero yield
// is the only run-level hard alert; degraded runs are recorded in the
// summary and logged but still surface their partial results.
func (r *Runner) finalize(run *model.IngestionRun, inserted []model.JobPosting) {
	if err := r.runs.SaveRun(*run); err != nil {
		r.logger.Error("saving run summary failed", "run", run.ID, "error", err)
	}

	if r.opts.Retention > 0 {
		if n, err := r.store.ExpireUnsaved(r.opts.Retention); err != nil {
			r.logger.Error("retention cleanup failed", "error", err)
		} else if n > 0 {
			r.logger.Info("expired unsaved postings", "count", n)
		}
	}

	if run.ZeroYield() {
		msg := fmt.Sprintf("run %s fetched zero records across %d platforms", run.ID, len(run.Adapters))
		if err := r.notifier.Notify(model.Event{Kind: model.EventZeroYield, Message: msg}); err != nil {
			r.logger.Error("zero-yield alert failed", "error", err)
		}
	} else if len(inserted) > 0 {
		if err := r.notifier.Notify(model.Event{Kind: model.EventNewPostings, Postings: inserted}); err != nil {
			r.logger.Error("new-postings notification failed", "error", err)
		}
	}

	r.logger.Info("ingestion run finished",
		"run", run.ID,
		"duration", run.FinishedAt.Sub(run.StartedAt).String(),
		"raw", run.RawCount,
		"normalized", run.Normalized,
		"deduped", run.Deduped,
		"inserted", run.Inserted,
		"updated", run.Updated,
		"degraded", run.Degraded(),
	)
}

// sinceCursor derives the fetch cursor from the last finished run so
// adapters can skip listings they have already produced.
func (r *Runner) sinceCursor() time.Time {
	last, err := r.runs.LastRun()
	if err != nil {
		r.logger.Warn("loading last run failed, fetching full feeds", "error", err)
		return time.Time{}
	}
	if last == nil {
		return time.Time{}
	}
	return last.StartedAt
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
