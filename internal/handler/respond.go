package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/gatehouse/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain sentinels to HTTP statuses in one place. Anything
// unrecognized is a 500 with a generic body; details go to the log only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ce *domain.CryptoError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDenied):
		writeErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrBanned):
		writeErrorMessage(w, http.StatusForbidden, domain.ErrBanned.Error())
	case domain.IsConflict(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoVisitContext):
		writeErrorMessage(w, http.StatusConflict, domain.ErrNoVisitContext.Error())
	case errors.Is(err, domain.ErrNoFaceDetected), errors.Is(err, domain.ErrCorruptImage):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrMatchTimeout):
		writeErrorMessage(w, http.StatusGatewayTimeout, domain.ErrMatchTimeout.Error())
	case errors.As(err, &ce):
		logger.Error("vault failure", slog.String("op", ce.Op), slog.String("error", ce.Err.Error()))
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
