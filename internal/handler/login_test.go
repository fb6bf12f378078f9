package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/service"
)

type stubAuthenticator struct {
	res *service.LoginResult
	err error
}

func (s *stubAuthenticator) Login(_ context.Context, _, _ string) (*service.LoginResult, error) {
	return s.res, s.err
}

func postLogin(t *testing.T, h *LoginHandler) *httptest.ResponseRecorder {
	t.Helper()
	body := strings.NewReader(`{"email":"alice@site.example","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	h := NewLoginHandler(&stubAuthenticator{res: &service.LoginResult{
		OfficerID: "officer-1",
		Token:     "tok",
		TokenType: "Bearer",
		Role:      domain.RoleAdmin,
	}}, nil)

	rec := postLogin(t, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"tok"`) {
		t.Fatalf("expected token in response, got %s", rec.Body.String())
	}
}

func TestLoginBadCredentialsIsUnauthorized(t *testing.T) {
	h := NewLoginHandler(&stubAuthenticator{err: domain.ErrDenied}, nil)

	rec := postLogin(t, h)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Fatalf("expected generic credentials message, got %s", rec.Body.String())
	}
}

func TestLoginInternalFailureIsNotUnauthorized(t *testing.T) {
	h := NewLoginHandler(&stubAuthenticator{err: errors.New("pq: connection refused")}, nil)

	rec := postLogin(t, h)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a storage failure, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Fatalf("internal fault must not masquerade as bad credentials: %s", rec.Body.String())
	}
}
