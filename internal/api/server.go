// Package api exposes the HTTP control surface for starting, inspecting
// and stopping monitoring runs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"repost_monitor/internal/bot"
	"repost_monitor/internal/metrics"
	"repost_monitor/internal/monitor"
)

// ControllerFactory builds the controller for one submitted run. The main
// package wires it so each run gets its own platform client and session.
type ControllerFactory func(runID string, creds monitor.Credentials, handles []string, tag string, interval time.Duration) *bot.Controller

type Config struct {
	Port            int
	DefaultInterval time.Duration
}

// Server is the HTTP API in front of the run registry.
type Server struct {
	cfg        Config
	registry   *bot.Registry
	newRun     ControllerFactory
	collector  *metrics.Collector
	logger     *slog.Logger
	httpServer *http.Server
}

func NewServer(cfg Config, registry *bot.Registry, newRun ControllerFactory, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		newRun:    newRun,
		collector: collector,
		logger:    logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/runs", s.instrument("/api/runs", s.handleSubmitRun))
	mux.Handle("GET /api/runs", s.instrument("/api/runs", s.handleListRuns))
	mux.Handle("GET /api/runs/{id}", s.instrument("/api/runs/{id}", s.handleRunStatus))
	mux.Handle("POST /api/runs/{id}/stop", s.instrument("/api/runs/{id}/stop", s.handleStopRun))
	mux.Handle("DELETE /api/runs/{id}", s.instrument("/api/runs/{id}", s.handleDeleteRun))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", collector.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(s.logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) instrument(pattern string, handler http.HandlerFunc) http.Handler {
	return s.collector.InstrumentHandler(pattern, handler)
}

type submitRunRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Phone    string   `json:"phone,omitempty"`
	Tag      string   `json:"tag"`
	// Tags, when set, are joined with single spaces into the annotation.
	Tags     []string `json:"tags,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	// AccountsFile is the raw contents of a newline separated account list,
	// merged with Accounts.
	AccountsFile string `json:"accounts_file,omitempty"`
	// IntervalSeconds overrides the configured pass interval.
	IntervalSeconds int  `json:"interval_seconds,omitempty"`
	Continuous      bool `json:"continuous"`
}

type submitRunResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "username and password are required")
		return
	}
	tag := req.Tag
	if tag == "" && len(req.Tags) > 0 {
		tag = strings.Join(req.Tags, " ")
	}
	if tag == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "tag is required")
		return
	}

	handles := append([]string(nil), req.Accounts...)
	handles = append(handles, parseAccountList(req.AccountsFile)...)
	if len(handles) == 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "at least one account to monitor is required")
		return
	}

	interval := s.cfg.DefaultInterval
	if req.IntervalSeconds > 0 {
		interval = time.Duration(req.IntervalSeconds) * time.Second
	}

	runID := uuid.NewString()
	creds := monitor.Credentials{
		Username: req.Username,
		Password: req.Password,
		Phone:    req.Phone,
	}

	controller := s.newRun(runID, creds, handles, tag, interval)
	s.registry.Add(controller)
	s.collector.SetActiveRuns(s.registry.Len())

	// Authentication can block on a manual verification step, so the run
	// starts in the background and the caller polls its status.
	go func() {
		if err := controller.Start(context.Background(), req.Continuous); err != nil {
			s.logger.Error("run failed to start", "run_id", runID, "error", err)
		}
	}()

	s.logger.Info("run submitted", "run_id", runID, "accounts", len(handles), "continuous", req.Continuous)
	writeJSON(w, http.StatusAccepted, submitRunResponse{RunID: runID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.registry.List()})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "run not found")
		return
	}
	writeJSON(w, http.StatusOK, controller.Status())
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "run not found")
		return
	}

	// Teardown is detached from the request: a client that disconnects
	// mid-call must not cancel the logout.
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	controller.Stop(stopCtx)
	writeJSON(w, http.StatusOK, controller.Status())
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.registry.Remove(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "run not found")
		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	controller.Stop(stopCtx)
	s.collector.SetActiveRuns(s.registry.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseAccountList splits a newline separated account blob, dropping blank
// lines and surrounding whitespace.
func parseAccountList(blob string) []string {
	var handles []string
	for _, line := range strings.Split(blob, "\n") {
		if handle := strings.TrimSpace(line); handle != "" {
			handles = append(handles, handle)
		}
	}
	return handles
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
