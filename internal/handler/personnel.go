package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/security/middleware"
	"github.com/yourorg/gatehouse/internal/service"
)

// PersonnelHandler manages officer accounts. Admin endpoints; the acting
// officer comes from the session token.
type PersonnelHandler struct {
	auth   *service.AuthService
	gate   *service.GateService
	logger *slog.Logger
}

func NewPersonnelHandler(auth *service.AuthService, gate *service.GateService, logger *slog.Logger) *PersonnelHandler {
	return &PersonnelHandler{auth: auth, gate: gate, logger: logger}
}

func actorID(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.OfficerID
	}
	return ""
}

// Register handles POST /api/personnel requests
func (h *PersonnelHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var input service.RegisterOfficerInput
	if !decodeBody(w, r, &input) {
		return
	}

	officer, err := h.auth.RegisterOfficer(r.Context(), actorID(r), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, officer)
}

// List handles GET /api/personnel requests
func (h *PersonnelHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	officers, err := h.auth.ListOfficers(r.Context(), actorID(r), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"personnel": officers})
}

// Get handles GET /api/personnel/{id} requests
func (h *PersonnelHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	officer, err := h.auth.GetOfficer(r.Context(), actorID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, officer)
}

// SecretCodeRequest carries a new gate PIN.
type SecretCodeRequest struct {
	SecretCode string `json:"secretCode"`
}

// UpdateSecretCode handles PUT /api/personnel/{id}/secret-code requests
func (h *PersonnelHandler) UpdateSecretCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SecretCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.auth.UpdateSecretCode(r.Context(), actorID(r), r.PathValue("id"), req.SecretCode); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Activity handles GET /api/personnel/{id}/activity requests
func (h *PersonnelHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	officerID := r.PathValue("id")
	// Admins can read anyone's trail; officers only their own.
	if _, err := h.auth.GetOfficer(r.Context(), actorID(r), officerID); err != nil && actorID(r) != officerID {
		writeError(w, h.logger, err)
		return
	}

	activity, err := h.gate.ActivityForOfficer(r.Context(), officerID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// Deactivate handles DELETE /api/personnel/{id} requests
func (h *PersonnelHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.auth.DeactivateOfficer(r.Context(), actorID(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
