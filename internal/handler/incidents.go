package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// IncidentRequest attaches a report to a visitor's latest visit.
type IncidentRequest struct {
	SecretCode  string `json:"secretCode"`
	VisitorID   string `json:"visitorId"`
	Description string `json:"description"`
}

// IncidentHandler records incidents at the gate
type IncidentHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewIncidentHandler(gate *service.GateService, logger *slog.Logger) *IncidentHandler {
	return &IncidentHandler{gate: gate, logger: logger}
}

// ServeHTTP handles POST /api/incidents requests
func (h *IncidentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req IncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VisitorID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	incident, err := h.gate.RecordIncident(r.Context(), req.SecretCode, req.VisitorID, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, incident)
}

// VisitDetailHandler serves one visit with its incident reports
type VisitDetailHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewVisitDetailHandler(gate *service.GateService, logger *slog.Logger) *VisitDetailHandler {
	return &VisitDetailHandler{gate: gate, logger: logger}
}

// ServeHTTP handles GET /api/visits/{id} requests
func (h *VisitDetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	visitID := r.PathValue("id")
	if visitID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visit id is required")
		return
	}

	detail, err := h.gate.GetVisit(r.Context(), visitID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
