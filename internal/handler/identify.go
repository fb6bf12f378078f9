package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// IdentifyRequest resolves a visitor at the gate. Exactly one of nationalId
// or photo (base64) must be present.
type IdentifyRequest struct {
	SecretCode string `json:"secretCode"`
	NationalID string `json:"nationalId,omitempty"`
	Photo      string `json:"photo,omitempty"`
}

// IdentifyHandler resolves visitor identity by national ID or face
type IdentifyHandler struct {
	visitors *service.VisitorService
	logger   *slog.Logger
}

func NewIdentifyHandler(visitors *service.VisitorService, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{visitors: visitors, logger: logger}
}

// ServeHTTP handles POST /api/identify requests
func (h *IdentifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req IdentifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var photo []byte
	if req.Photo != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Photo)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "photo must be base64-encoded")
			return
		}
		photo = decoded
	}

	res, err := h.visitors.Identify(r.Context(), service.IdentifyInput{
		SecretCode: req.SecretCode,
		NationalID: req.NationalID,
		Photo:      photo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
