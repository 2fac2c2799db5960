package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/portfolio-contact/backend/internal/dashboard"
)

// AdminHandler serves the admin message desk from the dashboard engine.
type AdminHandler struct {
	engine    *dashboard.Engine
	actions   *dashboard.Actions
	renderer  *dashboard.Renderer
	hub       *NotificationHub
	now       func() time.Time
	keepAlive time.Duration
}

// NewAdminHandler creates an AdminHandler. hub may be nil, which disables
// stream notifications.
func NewAdminHandler(engine *dashboard.Engine, actions *dashboard.Actions, renderer *dashboard.Renderer, hub *NotificationHub) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		actions:   actions,
		renderer:  renderer,
		hub:       hub,
		now:       time.Now,
		keepAlive: 25 * time.Second,
	}
}

func filterFromQuery(r *http.Request) dashboard.Filter {
	q := r.URL.Query()
	return dashboard.ParseFilter(q.Get("status"), q.Get("q"), q.Get("sort"))
}

// Messages handles GET /api/admin/messages?status=&q=&sort=.
func (h *AdminHandler) Messages(w http.ResponseWriter, r *http.Request) {
	state := h.engine.StateWith(filterFromQuery(r))
	writeJSON(w, http.StatusOK, h.renderer.ViewModel(state))
}

// Counters handles GET /api/admin/counters.
func (h *AdminHandler) Counters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Counters())
}

// Get handles GET /api/admin/messages/{id}; viewing marks unread messages read.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.actions.View(r.Context(), r.PathValue("id"))
	if errors.Is(err, dashboard.ErrNoSelection) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ToggleRead handles PATCH /api/admin/messages/{id}/read.
func (h *AdminHandler) ToggleRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := h.actions.ToggleRead(r.Context(), id)
	switch {
	case errors.Is(err, dashboard.ErrNoSelection):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		writeError(w, http.StatusBadGateway, "update_failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
	}
}

// Delete handles DELETE /api/admin/messages/{id}?confirm=true. The message
// leaves the list when the store reports the removal, hence 202.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.actions.Delete(r.Context(), id, r.URL.Query().Get("confirm") == "true")
	switch {
	case errors.Is(err, dashboard.ErrNoSelection):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, dashboard.ErrNotConfirmed):
		writeError(w, http.StatusBadRequest, "confirmation_required")
	case err != nil:
		writeError(w, http.StatusBadGateway, "delete_failed")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
	}
}

type replyFailedResponse struct {
	Error string `json:"error"`
	dashboard.Handoff
}

// Reply handles POST /api/admin/messages/{id}/reply. The mailto URI is
// returned even when marking the message replied failed.
func (h *AdminHandler) Reply(w http.ResponseWriter, r *http.Request) {
	handoff, err := h.actions.Reply(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, dashboard.ErrNoSelection):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		writeJSON(w, http.StatusBadGateway, replyFailedResponse{Error: "reply_status_failed", Handoff: handoff})
	default:
		writeJSON(w, http.StatusOK, handoff)
	}
}

// Export handles GET /api/admin/export?format=csv|mbox plus the list filters.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = dashboard.FormatCSV
	}

	var write func(io.Writer) error
	view := h.engine.StateWith(filterFromQuery(r)).View
	switch format {
	case dashboard.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		write = func(out io.Writer) error { return h.renderer.ExportCSV(out, view) }
	case dashboard.FormatMbox:
		w.Header().Set("Content-Type", "application/mbox")
		write = func(out io.Writer) error { return h.renderer.ExportMbox(out, view) }
	default:
		writeError(w, http.StatusBadRequest, "invalid_format")
		return
	}

	name := dashboard.ExportFilename(h.now(), h.renderer.Location(), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := write(w); err != nil {
		slog.Error("export failed", "format", format, "error", err)
	}
}

// Stream handles GET /api/admin/stream as Server-Sent Events. A "view" event
// carries the re-projected list after every change; with notify=1 the
// stream also receives "notification" events for new unread messages.
func (h *AdminHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	filter := filterFromQuery(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events := h.engine.Watch(ctx)
	var notes <-chan Notification
	if h.hub != nil && r.URL.Query().Get("notify") == "1" {
		notes = h.hub.Subscribe(ctx)
	}

	sendView := func() error {
		return writeEvent(w, rc, "view", h.renderer.ViewModel(h.engine.StateWith(filter)))
	}
	if err := sendView(); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			err = sendView()
		case n, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			err = writeEvent(w, rc, "notification", n)
		case <-ticker.C:
			if _, err = io.WriteString(w, ": ping\n\n"); err == nil {
				err = rc.Flush()
			}
		}
		if err != nil {
			slog.Debug("admin stream closed", "error", err)
			return
		}
	}
}

func writeEvent(w io.Writer, rc *http.ResponseController, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return rc.Flush()
}
