package breaker

import (
	"log/slog"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// Registry holds one breaker per configured platform and resumes persisted
// state on construction.
type Registry struct {
	breakers map[string]*Breaker
}

// PolicyFor selects the cooldown policy for a platform: the exponential
// ladder for risk-flagged platforms (LinkedIn), the fixed cooldown otherwise.
func PolicyFor(risk bool, fixed time.Duration, ladder []time.Duration) CooldownPolicy {
	if risk {
		return LadderCooldown{Rungs: ladder}
	}
	return FixedCooldown{D: fixed}
}

// NewRegistry builds breakers for the given platforms, loading any persisted
// state from store so an open circuit survives a restart.
func NewRegistry(
	platforms map[string]CooldownPolicy,
	threshold int,
	store model.AdapterStateStore,
	notifier model.Notifier,
	logger *slog.Logger,
) (*Registry, error) {
	persisted := map[string]model.SourceAdapterState{}
	if store != nil {
		loaded, err := store.LoadAdapterStates()
		if err != nil {
			return nil, err
		}
		persisted = loaded
	}

	r := &Registry{breakers: make(map[string]*Breaker, len(platforms))}
	for platform, policy := range platforms {
		var prior *model.SourceAdapterState
		if s, ok := persisted[platform]; ok {
			prior = &s
		}
		r.breakers[platform] = New(platform, threshold, policy, prior, store, notifier, logger)
	}
	return r, nil
}

// Get returns the breaker for platform, or nil if none is registered.
func (r *Registry) Get(platform string) *Breaker {
	return r.breakers[platform]
}

// States returns a snapshot of every breaker's persisted state.
func (r *Registry) States() []model.SourceAdapterState {
	states := make([]model.SourceAdapterState, 0, len(r.breakers))
	for _, b := range r.breakers {
		states = append(states, b.State())
	}
	return states
}
