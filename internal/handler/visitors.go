package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// VisitorsHandler serves visitor profiles and history for the dashboard.
// All routes here sit behind the session-token middleware.
type VisitorsHandler struct {
	visitors *service.VisitorService
	gate     *service.GateService
	logger   *slog.Logger
}

func NewVisitorsHandler(visitors *service.VisitorService, gate *service.GateService, logger *slog.Logger) *VisitorsHandler {
	return &VisitorsHandler{visitors: visitors, gate: gate, logger: logger}
}

// List handles GET /api/visitors requests
func (h *VisitorsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	visitors, err := h.visitors.ListVisitors(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"visitors": visitors})
}

// Profile handles GET /api/visitors/{id} requests
func (h *VisitorsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	profile, err := h.visitors.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Visits handles GET /api/visitors/{id}/visits requests
func (h *VisitorsHandler) Visits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	visits, err := h.visitors.VisitHistory(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"visits": visits})
}

// Bans handles GET /api/visitors/{id}/bans requests
func (h *VisitorsHandler) Bans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	bans, err := h.visitors.BanHistory(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bans": bans})
}

// Incidents handles GET /api/visitors/{id}/incidents requests
func (h *VisitorsHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	incidents, err := h.gate.IncidentHistory(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"incidents": incidents})
}

// OnSite handles GET /api/onsite requests
func (h *VisitorsHandler) OnSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := h.gate.OnSiteCount(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"onSite": count})
}
