package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func samplePosting() model.JobPosting {
	posted := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	return model.JobPosting{
		Title:        "Senior Go Engineer",
		Company:      "Acme Corp",
		Location:     "United States",
		Salary:       model.Salary{Min: 90000, Max: 120000, Currency: "USD", Period: "year"},
		Description:  "Build ingestion pipelines.",
		Technologies: []string{"Go", "PostgreSQL"},
		Experience:   model.ExperienceSenior,
		PostedAt:     &posted,
		Source:       "remoteok",
		URL:          "https://remoteok.com/jobs/1",
		FirstSeen:    time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC),
		LastSeen:     time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsert_InsertThenFind(t *testing.T) {
	st := newTestStore(t)

	result, err := st.Upsert(samplePosting())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if result != model.UpsertInserted {
		t.Fatalf("expected inserted, got %s", result)
	}

	found, err := st.FindByNaturalKey("senior go engineer", "ACME CORP")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil {
		t.Fatal("expected posting found via case-insensitive key")
	}
	if found.ID == "" {
		t.Fatal("expected synthetic id assigned")
	}
	if found.Salary.Min != 90000 || found.Salary.Unspecified {
		t.Fatalf("salary round-trip failed: %+v", found.Salary)
	}
	if len(found.Technologies) != 2 || found.Technologies[0] != "Go" {
		t.Fatalf("technologies round-trip failed: %v", found.Technologies)
	}
	if found.PostedAt == nil {
		t.Fatal("expected posted-at round-tripped")
	}
}

func TestUpsert_SameKeyUpdatesInPlace(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.Upsert(samplePosting()); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, err := st.FindByNaturalKey("Senior Go Engineer", "Acme Corp")
	if err != nil || first == nil {
		t.Fatalf("find after insert: %v, %v", first, err)
	}

	second := samplePosting()
	second.ID = first.ID
	second.Description = "updated description"
	second.LastSeen = first.LastSeen.Add(24 * time.Hour)

	result, err := st.Upsert(second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result != model.UpsertUpdated {
		t.Fatalf("expected updated, got %s", result)
	}

	after, err := st.FindByNaturalKey("Senior Go Engineer", "Acme Corp")
	if err != nil || after == nil {
		t.Fatalf("find after update: %v, %v", after, err)
	}
	if after.ID != first.ID {
		t.Fatalf("identity changed across upsert: %s -> %s", first.ID, after.ID)
	}
	if after.Description != "updated description" {
		t.Fatalf("expected updated description, got %q", after.Description)
	}
	if !after.FirstSeen.Equal(first.FirstSeen) {
		t.Fatalf("first-seen must not move on update: %v -> %v", first.FirstSeen, after.FirstSeen)
	}

	postings, err := st.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected a single row after same-key upsert, got %d", len(postings))
	}
}

func TestUpsert_UnspecifiedSalaryStoresNoAmounts(t *testing.T) {
	st := newTestStore(t)

	p := samplePosting()
	p.Salary = model.Salary{Unspecified: true}
	if _, err := st.Upsert(p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, err := st.FindByNaturalKey(p.Title, p.Company)
	if err != nil || found == nil {
		t.Fatalf("find: %v, %v", found, err)
	}
	if !found.Salary.Unspecified {
		t.Fatal("expected unspecified salary preserved")
	}
	if found.Salary.Min != 0 || found.Salary.Max != 0 || found.Salary.Currency != "" {
		t.Fatalf("unspecified salary leaked amounts: %+v", found.Salary)
	}
}

func TestFindByNaturalKey_MissReturnsNil(t *testing.T) {
	st := newTestStore(t)

	found, err := st.FindByNaturalKey("No Such", "Company")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil for a miss, got %+v", found)
	}
}

func TestSetSaved(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.Upsert(samplePosting()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p, err := st.FindByNaturalKey("Senior Go Engineer", "Acme Corp")
	if err != nil || p == nil {
		t.Fatalf("find: %v, %v", p, err)
	}

	if err := st.SetSaved(p.ID, true); err != nil {
		t.Fatalf("set saved: %v", err)
	}
	p, _ = st.FindByNaturalKey("Senior Go Engineer", "Acme Corp")
	if !p.Saved {
		t.Fatal("expected saved flag set")
	}

	if err := st.SetSaved("missing-id", true); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestExpireUnsaved_KeepsSavedPostings(t *testing.T) {
	st := newTestStore(t)

	old := samplePosting()
	old.LastSeen = time.Now().Add(-120 * 24 * time.Hour)
	if _, err := st.Upsert(old); err != nil {
		t.Fatalf("upsert old: %v", err)
	}

	oldSaved := samplePosting()
	oldSaved.Title = "Staff Engineer"
	oldSaved.Saved = true
	oldSaved.LastSeen = time.Now().Add(-120 * 24 * time.Hour)
	if _, err := st.Upsert(oldSaved); err != nil {
		t.Fatalf("upsert old saved: %v", err)
	}

	fresh := samplePosting()
	fresh.Title = "Platform Engineer"
	fresh.LastSeen = time.Now()
	if _, err := st.Upsert(fresh); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}

	deleted, err := st.ExpireUnsaved(90 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 expired posting, got %d", deleted)
	}

	remaining, err := st.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining postings, got %d", len(remaining))
	}
}

func TestAdapterStateRoundTrip(t *testing.T) {
	st := newTestStore(t)

	state := model.SourceAdapterState{
		Platform:      "linkedin",
		Failures:      3,
		State:         model.BreakerOpen,
		OpenCount:     2,
		CooldownUntil: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		LastSuccess:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := st.SaveAdapterState(state); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Overwrites, not duplicates.
	state.Failures = 4
	if err := st.SaveAdapterState(state); err != nil {
		t.Fatalf("second save: %v", err)
	}

	states, err := st.LoadAdapterStates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := states["linkedin"]
	if !ok {
		t.Fatal("expected linkedin state persisted")
	}
	if got.Failures != 4 || got.State != model.BreakerOpen || got.OpenCount != 2 {
		t.Fatalf("state round-trip mismatch: %+v", got)
	}
	if !got.CooldownUntil.Equal(state.CooldownUntil) {
		t.Fatalf("cooldown round-trip mismatch: %v", got.CooldownUntil)
	}
}

func TestAdapterState_ZeroTimesStayZero(t *testing.T) {
	st := newTestStore(t)

	if err := st.SaveAdapterState(model.SourceAdapterState{
		Platform: "remoteok",
		State:    model.BreakerClosed,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	states, err := st.LoadAdapterStates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := states["remoteok"]
	if !got.CooldownUntil.IsZero() || !got.LastSuccess.IsZero() {
		t.Fatalf("expected zero times preserved, got %+v", got)
	}
}

func TestRunRoundTrip(t *testing.T) {
	st := newTestStore(t)

	if last, err := st.LastRun(); err != nil || last != nil {
		t.Fatalf("expected no runs yet, got %v, %v", last, err)
	}

	early := model.IngestionRun{
		ID:         "run-1",
		StartedAt:  time.Date(2026, 8, 10, 6, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 10, 6, 5, 0, 0, time.UTC),
		Adapters: []model.AdapterResult{
			{Platform: "remoteok", Outcome: model.OutcomeSuccess, Fetched: 12},
		},
		RawCount: 12, Normalized: 11, Deduped: 10, Inserted: 8, Updated: 2,
	}
	late := model.IngestionRun{
		ID:         "run-2",
		StartedAt:  time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 10, 12, 4, 0, 0, time.UTC),
		Adapters: []model.AdapterResult{
			{Platform: "remoteok", Outcome: model.OutcomeFailure, Err: "boom"},
			{Platform: "himalayas", Outcome: model.OutcomeSuccess, Fetched: 5},
		},
		RawCount: 5, Normalized: 5, Deduped: 5, Inserted: 1, Updated: 4,
	}
	if err := st.SaveRun(early); err != nil {
		t.Fatalf("save early: %v", err)
	}
	if err := st.SaveRun(late); err != nil {
		t.Fatalf("save late: %v", err)
	}

	last, err := st.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if last == nil || last.ID != "run-2" {
		t.Fatalf("expected run-2 as most recent, got %+v", last)
	}
	if len(last.Adapters) != 2 || last.Adapters[0].Err != "boom" {
		t.Fatalf("adapter results round-trip mismatch: %+v", last.Adapters)
	}
	if !last.Degraded() {
		t.Fatal("expected degraded run")
	}

	if err := st.SaveRun(late); err == nil {
		t.Fatal("expected duplicate run id to error")
	}
}
