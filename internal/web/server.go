// Package web exposes a small read-only status API over the running watcher.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"failwatch/internal/db"
	"failwatch/internal/watcher"
)

type Server struct {
	watcher *watcher.Watcher
	repo    *db.Repository
	log     *slog.Logger
}

// NewServer wires the status API. repo may be nil when the history store is
// disabled; /api/alerts then reports it as unavailable.
func NewServer(w *watcher.Watcher, repo *db.Repository, logger *slog.Logger) *Server {
	return &Server{watcher: w, repo: repo, log: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	return withLogging(s.log, mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert history disabled"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	alerts, err := s.repo.ListRecentAlerts(r.Context(), limit)
	if err != nil {
		s.log.Error("list alerts", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	type alertJSON struct {
		ID        int64  `json:"id"`
		Kind      string `json:"kind"`
		Summary   string `json:"summary"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertJSON{
			ID:        a.ID,
			Kind:      a.Kind,
			Summary:   a.Summary,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
