// Package scheduler wires the cron trigger that fires ingestion runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jobsift/jobsift/internal/ingest"
)

// Scheduler wraps robfig/cron and triggers the runner on the configured spec.
type Scheduler struct {
	cron   *cron.Cron
	runner *ingest.Runner
	spec   string // cron spec, e.g. "@every 6h"
	logger *slog.Logger
}

// New creates a scheduler for the given cron spec.
func New(runner *ingest.Runner, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop, running one immediate
// cycle so the store is populated without waiting for the first tick.
// It returns after scheduling; Stop shuts the loop down.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.trigger(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)

	go s.trigger(ctx)
	return nil
}

// Stop shuts down the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// trigger runs one ingestion cycle. A tick that fires while a run is still
// active is skipped, not queued; the next tick picks up normally.
func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	run, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrRunActive) {
			s.logger.Warn("skipping tick, previous run still active")
			return
		}
		s.logger.Error("ingestion run failed", "error", err)
		return
	}

	s.logger.Info("scheduled run complete", "run", run.ID, "inserted", run.Inserted, "updated", run.Updated)
}
