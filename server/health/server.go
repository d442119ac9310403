// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/absmach/sparkplug-tck/storage"
	"github.com/absmach/sparkplug-tck/tck"
)

// Config holds health check server configuration.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// Observer reports the state of the MQTT observer.
type Observer interface {
	Connected() bool
	Delivered() int64
}

// Server provides health endpoints and read access to stored reports.
type Server struct {
	config   Config
	observer Observer
	store    storage.ReportStore
	logger   *slog.Logger
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new health check server. A nil store disables the report
// endpoints.
func New(cfg Config, obs Observer, store storage.ReportStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		observer: obs,
		store:    store,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/", s.handleReport)

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Addr returns the listener's network address.
// Returns "" if server hasn't started listening yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listen serves until ctx is canceled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Starting health check server", "address", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Health check server shutdown error", "error", err)
			return err
		}

		s.logger.Info("Health check server stopped")
		return nil
	}
}

// HealthResponse represents the liveness probe response.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth implements liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// ReadyResponse represents the readiness probe response.
type ReadyResponse struct {
	Status    string `json:"status"`
	Delivered int64  `json:"delivered"`
	Details   string `json:"details,omitempty"`
}

// handleReady reports ready while the observer is connected to the broker.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.observer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status:  "not_ready",
			Details: "observer not initialized",
		})
		return
	}

	if !s.observer.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status:    "not_ready",
			Delivered: s.observer.Delivered(),
			Details:   "observer not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, ReadyResponse{
		Status:    "ready",
		Delivered: s.observer.Delivered(),
	})
}

// handleReports lists stored reports, optionally filtered by ?test=.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "report storage disabled", http.StatusNotFound)
		return
	}

	reports, err := s.store.List(r.Context(), r.URL.Query().Get("test"))
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err)
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = make([]*tck.Report, 0)
	}

	writeJSON(w, http.StatusOK, reports)
}

// handleReport returns the report named by /reports/{id}.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "report storage disabled", http.StatusNotFound)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}

	report, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "report not found", http.StatusNotFound)
	case err != nil:
		s.logger.Error("Failed to get report", "id", id, "error", err)
		http.Error(w, "failed to get report", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
