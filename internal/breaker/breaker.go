// Package breaker implements the per-platform circuit breaker guarding
// source adapters. Cooldowns are evaluated lazily: callers check Allow
// before fetching, so an open circuit skips the platform for that run
// instead of blocking anything.
package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// ErrOpen is returned by Allow while the circuit is open and the cooldown
// has not elapsed.
var ErrOpen = fmt.Errorf("circuit breaker is open")

// CooldownPolicy determines how long an opened circuit stays closed to
// traffic. openCount is 1 for the first open, 2 for an open that followed a
// failed half-open trial, and so on.
type CooldownPolicy interface {
	Cooldown(openCount int) time.Duration
	Name() string
}

// FixedCooldown is the generic infrastructure policy: the same cooldown on
// every open.
type FixedCooldown struct {
	D time.Duration
}

func (f FixedCooldown) Cooldown(int) time.Duration { return f.D }
func (f FixedCooldown) Name() string               { return "fixed" }

// LadderCooldown is the platform-risk policy: successive opens walk an
// escalating ladder (24h, 48h, 96h for LinkedIn) and stay at the last rung.
type LadderCooldown struct {
	Rungs []time.Duration
}

func (l LadderCooldown) Cooldown(openCount int) time.Duration {
	if len(l.Rungs) == 0 {
		return time.Hour
	}
	idx := openCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.Rungs) {
		idx = len(l.Rungs) - 1
	}
	return l.Rungs[idx]
}

func (l LadderCooldown) Name() string { return "ladder" }

// Breaker is the circuit breaker for a single platform. All transitions go
// through the Breaker (single writer per adapter); persisted state keeps an
// open circuit open across process restarts.
type Breaker struct {
	mu        sync.Mutex
	platform  string
	threshold int
	policy    CooldownPolicy
	state     model.SourceAdapterState
	store     model.AdapterStateStore
	notifier  model.Notifier
	logger    *slog.Logger
	now       func() time.Time // injectable clock for tests
}

// New creates a breaker for platform. If prior is non-nil the breaker
// resumes from the persisted state instead of starting closed.
func New(
	platform string,
	threshold int,
	policy CooldownPolicy,
	prior *model.SourceAdapterState,
	store model.AdapterStateStore,
	notifier model.Notifier,
	logger *slog.Logger,
) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	b := &Breaker{
		platform:  platform,
		threshold: threshold,
		policy:    policy,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
	if prior != nil {
		b.state = *prior
	} else {
		b.state = model.SourceAdapterState{
			Platform: platform,
			State:    model.BreakerClosed,
		}
	}
	return b
}

// Allow reports whether a call may proceed. While open and inside the
// cooldown window it returns ErrOpen without any side effects; once the
// cooldown elapses the breaker moves to half-open and permits exactly one
// trial call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.State {
	case model.BreakerOpen:
		if b.now().Before(b.state.CooldownUntil) {
			return fmt.Errorf("%w: %s retries after %s", ErrOpen, b.platform,
				b.state.CooldownUntil.Format(time.RFC3339))
		}
		b.transitionTo(model.BreakerHalfOpen)
		return nil
	case model.BreakerHalfOpen, model.BreakerClosed:
		return nil
	default:
		return fmt.Errorf("breaker for %s in unknown state %q", b.platform, b.state.State)
	}
}

// Record registers the outcome of a call that Allow permitted. A success
// closes the circuit and resets the failure count; a failure increments it
// and opens the circuit at the threshold. A half-open trial failure reopens
// immediately with the next cooldown rung.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state.Failures = 0
		b.state.OpenCount = 0
		b.state.LastSuccess = b.now()
		if b.state.State != model.BreakerClosed {
			b.transitionTo(model.BreakerClosed)
		} else {
			b.persist()
		}
		return
	}

	b.state.Failures++

	switch b.state.State {
	case model.BreakerClosed:
		if b.state.Failures >= b.threshold {
			b.open()
		} else {
			b.persist()
		}
	case model.BreakerHalfOpen:
		// The single trial failed; reopen with a longer cooldown.
		b.open()
	case model.BreakerOpen:
		b.persist()
	}
}

// State returns a copy of the current persisted state.
func (b *Breaker) State() model.SourceAdapterState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// open must be called with the mutex held.
func (b *Breaker) open() {
	b.state.OpenCount++
	cooldown := b.policy.Cooldown(b.state.OpenCount)
	b.state.CooldownUntil = b.now().Add(cooldown)
	b.transitionTo(model.BreakerOpen)

	msg := fmt.Sprintf("circuit opened for %s after %d consecutive failures; cooling down %s",
		b.platform, b.state.Failures, cooldown)
	if err := b.notifier.Notify(model.Event{
		Kind:     model.EventBreakerOpen,
		Platform: b.platform,
		Message:  msg,
	}); err != nil {
		b.logger.Error("breaker-open alert failed", "platform", b.platform, "error", err)
	}
}

// transitionTo must be called with the mutex held.
func (b *Breaker) transitionTo(next model.BreakerState) {
	prev := b.state.State
	if prev == next {
		return
	}
	b.state.State = next
	if next == model.BreakerClosed {
		b.state.Failures = 0
		b.state.CooldownUntil = time.Time{}
	}
	b.logger.Info("breaker state change",
		"platform", b.platform,
		"from", string(prev),
		"to", string(next),
	)
	b.persist()
}

// persist must be called with the mutex held.
func (b *Breaker) persist() {
	if b.store == nil {
		return
	}
	if err := b.store.SaveAdapterState(b.state); err != nil {
		b.logger.Error("persisting breaker state failed", "platform", b.platform, "error", err)
	}
}
