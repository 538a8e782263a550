package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// LoadAdapterStates returns every persisted breaker record keyed by platform.
func (s *SQLiteStore) LoadAdapterStates() (map[string]model.SourceAdapterState, error) {
	rows, err := s.db.Query(
		`SELECT platform, failures, state, open_count, cooldown_until, last_success FROM adapter_state`)
	if err != nil {
		return nil, fmt.Errorf("loading adapter states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]model.SourceAdapterState)
	for rows.Next() {
		var (
			st       model.SourceAdapterState
			state    string
			cooldown sql.NullTime
			success  sql.NullTime
		)
		if err := rows.Scan(&st.Platform, &st.Failures, &state, &st.OpenCount, &cooldown, &success); err != nil {
			return nil, fmt.Errorf("scanning adapter state: %w", err)
		}
		st.State = model.BreakerState(state)
		if cooldown.Valid {
			st.CooldownUntil = cooldown.Time
		}
		if success.Valid {
			st.LastSuccess = success.Time
		}
		states[st.Platform] = st
	}
	return states, rows.Err()
}

// SaveAdapterState writes one platform's breaker record.
func (s *SQLiteStore) SaveAdapterState(st model.SourceAdapterState) error {
	_, err := s.db.Exec(`
		INSERT INTO adapter_state (platform, failures, state, open_count, cooldown_until, last_success)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			failures       = excluded.failures,
			state          = excluded.state,
			open_count     = excluded.open_count,
			cooldown_until = excluded.cooldown_until,
			last_success   = excluded.last_success`,
		st.Platform, st.Failures, string(st.State), st.OpenCount,
		zeroNullTime(st.CooldownUntil), zeroNullTime(st.LastSuccess),
	)
	if err != nil {
		return fmt.Errorf("saving adapter state for %s: %w", st.Platform, err)
	}
	return nil
}

// SaveRun persists a finalized run summary. Runs are immutable; a duplicate
// id is an error.
func (s *SQLiteStore) SaveRun(run model.IngestionRun) error {
	adapters, err := json.Marshal(run.Adapters)
	if err != nil {
		return fmt.Errorf("marshal run adapters: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO ingestion_runs (id, started_at, finished_at, adapters, raw_count, normalized, deduped, inserted, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, string(adapters),
		run.RawCount, run.Normalized, run.Deduped, run.Inserted, run.Updated,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// LastRun returns the most recently finished run, or nil if none exists.
func (s *SQLiteStore) LastRun() (*model.IngestionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, adapters, raw_count, normalized, deduped, inserted, updated
		FROM ingestion_runs ORDER BY finished_at DESC LIMIT 1`)

	var (
		run      model.IngestionRun
		adapters string
	)
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &adapters,
		&run.RawCount, &run.Normalized, &run.Deduped, &run.Inserted, &run.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading last run: %w", err)
	}
	if err := json.Unmarshal([]byte(adapters), &run.Adapters); err != nil {
		return nil, fmt.Errorf("unmarshal run adapters: %w", err)
	}
	return &run, nil
}

func zeroNullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
