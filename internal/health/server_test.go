package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/breaker"
	"github.com/jobsift/jobsift/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRunStore struct {
	last *model.IngestionRun
}

func (s *stubRunStore) SaveRun(model.IngestionRun) error      { return nil }
func (s *stubRunStore) LastRun() (*model.IngestionRun, error) { return s.last, nil }

type nopNotifier struct{}

func (nopNotifier) Notify(model.Event) error { return nil }

func newTestServer(t *testing.T, runs model.RunStore) *Server {
	t.Helper()
	registry, err := breaker.NewRegistry(map[string]breaker.CooldownPolicy{
		"remoteok": breaker.FixedCooldown{D: time.Hour},
		"indeed":   breaker.FixedCooldown{D: time.Hour},
	}, 3, nil, nopNotifier{}, discardLogger())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return New(":0", registry, runs, discardLogger())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &stubRunStore{})

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestStatus_ListsAdaptersSorted(t *testing.T) {
	s := newTestServer(t, &stubRunStore{})

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Adapters []struct {
			Platform string `json:"platform"`
			State    string `json:"state"`
		} `json:"adapters"`
		LastRun *json.RawMessage `json:"last_run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Adapters) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(body.Adapters))
	}
	if body.Adapters[0].Platform != "indeed" || body.Adapters[1].Platform != "remoteok" {
		t.Fatalf("expected sorted platforms, got %+v", body.Adapters)
	}
	if body.Adapters[0].State != string(model.BreakerClosed) {
		t.Fatalf("expected closed state, got %q", body.Adapters[0].State)
	}
	if body.LastRun != nil {
		t.Fatal("expected no last_run before any run")
	}
}

func TestStatus_IncludesLastRun(t *testing.T) {
	runs := &stubRunStore{last: &model.IngestionRun{
		ID:         "run-1",
		StartedAt:  time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 20, 6, 4, 0, 0, time.UTC),
		Adapters: []model.AdapterResult{
			{Platform: "remoteok", Outcome: model.OutcomeSuccess, Fetched: 7},
		},
		RawCount: 7, Inserted: 5, Updated: 2,
	}}
	s := newTestServer(t, runs)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body struct {
		LastRun struct {
			ID        string `json:"id"`
			Raw       int    `json:"raw"`
			Inserted  int    `json:"inserted"`
			Degraded  bool   `json:"degraded"`
			ZeroYield bool   `json:"zero_yield"`
		} `json:"last_run"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.LastRun.ID != "run-1" || body.LastRun.Raw != 7 || body.LastRun.Inserted != 5 {
		t.Fatalf("unexpected last_run: %+v", body.LastRun)
	}
	if body.LastRun.Degraded || body.LastRun.ZeroYield {
		t.Fatalf("healthy run misreported: %+v", body.LastRun)
	}
}
