package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/service"
)

// LoginRequest represents dashboard login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginAuthenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// LoginHandler authenticates officers for the dashboard
type LoginHandler struct {
	auth   loginAuthenticator
	logger *slog.Logger
}

func NewLoginHandler(auth loginAuthenticator, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{auth: auth, logger: logger}
}

// ServeHTTP handles POST /api/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrDenied) {
		// Generic error to prevent account enumeration
		h.logger.Warn("login failed", slog.String("email", req.Email))
		writeErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("officer logged in",
		slog.String("officer_id", res.OfficerID),
		slog.String("role", string(res.Role)),
	)
	writeJSON(w, http.StatusOK, res)
}
