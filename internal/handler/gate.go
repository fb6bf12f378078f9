package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// CheckInRequest opens a visit.
type CheckInRequest struct {
	SecretCode string `json:"secretCode"`
	VisitorID  string `json:"visitorId"`
	Reason     string `json:"reason"`
}

// CheckOutRequest closes an open visit.
type CheckOutRequest struct {
	SecretCode string `json:"secretCode"`
	VisitID    string `json:"visitId"`
}

// CheckInHandler records visitor entry
type CheckInHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewCheckInHandler(gate *service.GateService, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{gate: gate, logger: logger}
}

// ServeHTTP handles POST /api/checkin requests
func (h *CheckInHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VisitorID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	visit, err := h.gate.CheckIn(r.Context(), req.SecretCode, req.VisitorID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, visit)
}

// CheckOutHandler records visitor exit
type CheckOutHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewCheckOutHandler(gate *service.GateService, logger *slog.Logger) *CheckOutHandler {
	return &CheckOutHandler{gate: gate, logger: logger}
}

// ServeHTTP handles POST /api/checkout requests
func (h *CheckOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CheckOutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VisitID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visitId is required")
		return
	}

	visit, err := h.gate.CheckOut(r.Context(), req.SecretCode, req.VisitID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, visit)
}
