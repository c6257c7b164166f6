package webapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/report"
	"github.com/rowanhealth/clinsight/internal/store"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	store  store.Store
	logger *slog.Logger
}

// NewHandlers creates a new Handlers backed by the given store.
func NewHandlers(st store.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: st, logger: logger}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleSessions returns the status of every stored session.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	statuses := make([]*SessionStatus, 0, len(ids))
	for _, id := range ids {
		sess, err := h.store.GetSession(r.Context(), id)
		if err != nil {
			h.logger.Error("loading session", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load session")
			return
		}
		statuses = append(statuses, BuildSessionStatus(sess))
	}
	writeJSON(w, http.StatusOK, statuses)
}

// HandleSessionStatus returns the pipeline status of a single session.
func (h *Handlers) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, BuildSessionStatus(sess))
}

// HandleSessionLog returns the append-only processing log of a session,
// oldest entry first.
func (h *Handlers) HandleSessionLog(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}

	entries, err := h.store.ListLog(r.Context(), sess.ID)
	if err != nil {
		h.logger.Error("listing processing log", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list processing log")
		return
	}
	if entries == nil {
		entries = []models.ProcessingLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleSessionReport renders the session insight report as HTML.
func (h *Handlers) HandleSessionReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}

	html, err := report.RenderHTML(sess)
	if err != nil {
		h.logger.Error("rendering report", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return nil, false
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found: "+id)
			return nil, false
		}
		h.logger.Error("loading session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("GET /api/sessions/{id}/status", h.HandleSessionStatus)
	mux.HandleFunc("GET /api/sessions/{id}/log", h.HandleSessionLog)
	mux.HandleFunc("GET /api/sessions/{id}/report", h.HandleSessionReport)
}

// CORSMiddleware adds CORS headers for local development.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: status})
}
