// Package health exposes the status HTTP surface consumed by an external
// orchestrator: per-adapter breaker state and the last run summary.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobsift/jobsift/internal/breaker"
	"github.com/jobsift/jobsift/internal/model"
)

// Server serves /healthz and /api/status.
type Server struct {
	breakers *breaker.Registry
	runs     model.RunStore
	logger   *slog.Logger
	srv      *http.Server
}

// New builds the server on addr.
func New(addr string, breakers *breaker.Registry, runs model.RunStore, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{breakers: breakers, runs: runs, logger: logger}
	router.GET("/healthz", s.healthz)
	router.GET("/api/status", s.status)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It blocks; run it in a goroutine.
func (s *Server) Start() error {
	s.logger.Info("health server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type adapterStatus struct {
	Platform      string `json:"platform"`
	State         string `json:"state"`
	Failures      int    `json:"consecutive_failures"`
	CooldownUntil string `json:"cooldown_until,omitempty"`
	LastSuccess   string `json:"last_success,omitempty"`
}

func (s *Server) status(c *gin.Context) {
	states := s.breakers.States()
	sort.Slice(states, func(i, j int) bool { return states[i].Platform < states[j].Platform })

	adapters := make([]adapterStatus, 0, len(states))
	for _, st := range states {
		a := adapterStatus{
			Platform: st.Platform,
			State:    string(st.State),
			Failures: st.Failures,
		}
		if !st.CooldownUntil.IsZero() {
			a.CooldownUntil = st.CooldownUntil.Format(time.RFC3339)
		}
		if !st.LastSuccess.IsZero() {
			a.LastSuccess = st.LastSuccess.Format(time.RFC3339)
		}
		adapters = append(adapters, a)
	}

	resp := gin.H{"adapters": adapters}

	last, err := s.runs.LastRun()
	if err != nil {
		s.logger.Error("loading last run for status failed", "error", err)
	} else if last != nil {
		resp["last_run"] = gin.H{
			"id":          last.ID,
			"started_at":  last.StartedAt.Format(time.RFC3339),
			"finished_at": last.FinishedAt.Format(time.RFC3339),
			"raw":         last.RawCount,
			"inserted":    last.Inserted,
			"updated":     last.Updated,
			"degraded":    last.Degraded(),
			"zero_yield":  last.ZeroYield(),
		}
	}

	c.JSON(http.StatusOK, resp)
}
