package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/service"
)

// RegisterVisitorRequest enrolls a new visitor. Photo is optional and
// base64-encoded.
type RegisterVisitorRequest struct {
	SecretCode  string `json:"secretCode"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	NationalID  string `json:"nationalId"`
	Photo       string `json:"photo,omitempty"`
}

// RegisterVisitorHandler handles visitor enrollment at the gate
type RegisterVisitorHandler struct {
	visitors *service.VisitorService
	logger   *slog.Logger
}

func NewRegisterVisitorHandler(visitors *service.VisitorService, logger *slog.Logger) *RegisterVisitorHandler {
	return &RegisterVisitorHandler{visitors: visitors, logger: logger}
}

// ServeHTTP handles POST /api/visitors/register requests
func (h *RegisterVisitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RegisterVisitorRequest
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

	visitor, err := h.visitors.Register(r.Context(), service.RegisterVisitorInput{
		SecretCode:  req.SecretCode,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		Photo:       photo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, visitor)
}
