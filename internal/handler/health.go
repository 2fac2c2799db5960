package handler

import (
	"net/http"
)

type healthResponse struct {
	Status    string           `json:"status"`
	Store     string           `json:"store,omitempty"`
	Error     string           `json:"error,omitempty"`
	Dashboard *dashboardHealth `json:"dashboard,omitempty"`
}

// dashboardHealth shows whether the live message list is populated and
// moving: Version grows with every applied change.
type dashboardHealth struct {
	Version uint64 `json:"version"`
	Total   int    `json:"total"`
	Unread  int    `json:"unread"`
}

// Health handles GET /api/health. It pings the contacts store and, when a
// dashboard engine is attached, reports its version and counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: h.storeDriver}
	if h.engine != nil {
		s := h.engine.State()
		resp.Dashboard = &dashboardHealth{Version: s.Version, Total: s.Counters.Total, Unread: s.Counters.Unread}
	}

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
