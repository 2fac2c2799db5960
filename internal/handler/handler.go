package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/repository"
)

type Handler struct {
	db          repository.DB
	frontendURL string
	storeDriver string
	engine      *dashboard.Engine
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithStoreDriver names the store backend in health responses.
func WithStoreDriver(driver string) HandlerOption {
	return func(h *Handler) { h.storeDriver = driver }
}

// WithDashboard adds the engine's version and counters to health responses.
func WithDashboard(e *dashboard.Engine) HandlerOption {
	return func(h *Handler) { h.engine = e }
}

func New(db repository.DB, frontendURL string, opts ...HandlerOption) *Handler {
	h := &Handler{db: db, frontendURL: frontendURL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.frontendURL)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

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
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
