package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// BanRequest bars a visitor from entry.
type BanRequest struct {
	SecretCode string `json:"secretCode"`
	VisitorID  string `json:"visitorId"`
	Reason     string `json:"reason"`
}

// LiftBanRequest closes a visitor's active ban.
type LiftBanRequest struct {
	SecretCode string `json:"secretCode"`
	VisitorID  string `json:"visitorId"`
}

// BanHandler issues bans
type BanHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewBanHandler(gate *service.GateService, logger *slog.Logger) *BanHandler {
	return &BanHandler{gate: gate, logger: logger}
}

// ServeHTTP handles POST /api/bans requests
func (h *BanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req BanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VisitorID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	ban, err := h.gate.IssueBan(r.Context(), req.SecretCode, req.VisitorID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ban)
}

// LiftBanHandler lifts active bans
type LiftBanHandler struct {
	gate   *service.GateService
	logger *slog.Logger
}

func NewLiftBanHandler(gate *service.GateService, logger *slog.Logger) *LiftBanHandler {
	return &LiftBanHandler{gate: gate, logger: logger}
}

// ServeHTTP handles POST /api/bans/lift requests
func (h *LiftBanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req LiftBanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VisitorID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	ban, err := h.gate.LiftBan(r.Context(), req.SecretCode, req.VisitorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ban)
}
