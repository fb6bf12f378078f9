package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/security/audit"
	"github.com/yourorg/gatehouse/internal/security/auth"
	"github.com/yourorg/gatehouse/internal/vault"
)

func newTestAuthService(t *testing.T) (*AuthService, *memPersonnelRepo, *vault.Vault) {
	t.Helper()
	v, err := vault.New("test-master-key")
	if err != nil {
		t.Fatalf("vault init: %v", err)
	}
	repo := newMemPersonnelRepo()
	tokens := auth.NewTokenManager("test-secret", "gatehouse-test")
	s := NewAuthService(repo, v, tokens, time.Hour, audit.NewLogger(nil), nil)
	return s, repo, v
}

func seedOfficer(t *testing.T, repo *memPersonnelRepo, v *vault.Vault, id, email string, role domain.Role, password, secretCode string) *domain.Person {
	t.Helper()
	p := &domain.Person{
		ID:        id,
		FirstName: "Test",
		LastName:  "Officer",
		Email:     email,
		Role:      role,
		IsActive:  true,
	}
	if password != "" {
		hash, err := v.HashSecret(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		p.PasswordHash = hash
	}
	if secretCode != "" {
		hash, err := v.HashSecret(secretCode)
		if err != nil {
			t.Fatalf("hash secret code: %v", err)
		}
		p.SecretCodeHash = hash
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed officer: %v", err)
	}
	return p
}

func TestAuthorizeBySecretCode(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	alice := seedOfficer(t, repo, v, "officer-1", "alice@site.example", domain.RoleSecurity, "", "1234")
	seedOfficer(t, repo, v, "officer-2", "bob@site.example", domain.RoleSecurity, "", "5678")

	got, err := s.AuthorizeBySecretCode(ctx, "1234")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("expected officer %s, got %s", alice.ID, got.ID)
	}

	if _, err := s.AuthorizeBySecretCode(ctx, "9999"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("expected ErrDenied for unknown code, got %v", err)
	}
}

func TestAuthorizeBySecretCodeEmptyDenied(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	seedOfficer(t, repo, v, "officer-1", "alice@site.example", domain.RoleSecurity, "", "1234")

	if _, err := s.AuthorizeBySecretCode(context.Background(), ""); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("expected ErrDenied for empty code, got %v", err)
	}
}

func TestAuthorizeSkipsInactiveAndCodeless(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	former := seedOfficer(t, repo, v, "officer-1", "former@site.example", domain.RoleSecurity, "", "1234")
	former.IsActive = false
	seedOfficer(t, repo, v, "officer-2", "nocode@site.example", domain.RoleSecurity, "pass-word", "")

	if _, err := s.AuthorizeBySecretCode(ctx, "1234"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("expected ErrDenied for inactive officer's code, got %v", err)
	}
}

func TestAuthorizeFirstMatchWinsInCreationOrder(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	// Two officers sharing one code: creation order decides attribution.
	first := seedOfficer(t, repo, v, "officer-1", "first@site.example", domain.RoleSecurity, "", "7777")
	seedOfficer(t, repo, v, "officer-2", "second@site.example", domain.RoleSecurity, "", "7777")

	got, err := s.AuthorizeBySecretCode(ctx, "7777")
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected first-created officer %s, got %s", first.ID, got.ID)
	}
}

func TestAuthorizeNeverMatchesUnsetCodes(t *testing.T) {
	s, repo, _ := newTestAuthService(t)
	ctx := context.Background()

	// Hash at bcrypt's minimum cost so scanning a 50-officer roster against
	// 1,000 probes stays fast; the verify path is identical.
	for i := 0; i < 50; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("code-%02d", i)), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash secret code: %v", err)
		}
		officer := &domain.Person{
			ID:             fmt.Sprintf("officer-%02d", i),
			FirstName:      "Test",
			LastName:       "Officer",
			Email:          fmt.Sprintf("officer-%02d@site.example", i),
			Role:           domain.RoleSecurity,
			IsActive:       true,
			SecretCodeHash: string(hash),
		}
		if err := repo.Create(ctx, officer); err != nil {
			t.Fatalf("seed officer: %v", err)
		}
	}

	// All-digit probes never collide with the seeded "code-NN" values.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		probe := fmt.Sprintf("%06d", rng.Intn(1000000))
		if _, err := s.AuthorizeBySecretCode(ctx, probe); !errors.Is(err, domain.ErrDenied) {
			t.Fatalf("code %q was never set for any officer but authorized: %v", probe, err)
		}
	}
}

func TestLogin(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	seedOfficer(t, repo, v, "officer-1", "alice@site.example", domain.RoleAdmin, "correct-horse", "")

	res, err := s.Login(ctx, "alice@site.example", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" || res.TokenType != "Bearer" {
		t.Fatalf("expected a bearer token, got %+v", res)
	}
	if res.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role in result, got %s", res.Role)
	}

	// Unknown email, wrong password and inactive account are
	// indistinguishable to the caller.
	if _, err := s.Login(ctx, "nobody@site.example", "correct-horse"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("unknown email: expected ErrDenied, got %v", err)
	}
	if _, err := s.Login(ctx, "alice@site.example", "wrong"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("wrong password: expected ErrDenied, got %v", err)
	}

	inactive := seedOfficer(t, repo, v, "officer-2", "gone@site.example", domain.RoleSecurity, "correct-horse", "")
	inactive.IsActive = false
	if _, err := s.Login(ctx, "gone@site.example", "correct-horse"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("inactive account: expected ErrDenied, got %v", err)
	}
}

func TestRegisterOfficerRequiresAdmin(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	admin := seedOfficer(t, repo, v, "admin-1", "admin@site.example", domain.RoleAdmin, "admin-pass", "")
	guard := seedOfficer(t, repo, v, "officer-1", "guard@site.example", domain.RoleSecurity, "guard-pass", "")

	input := RegisterOfficerInput{
		FirstName:   "New",
		LastName:    "Guard",
		Email:       "new@site.example",
		PhoneNumber: "555-0100",
		NationalID:  "NID-100",
		Role:        domain.RoleSecurity,
		Password:    "long-enough-pw",
		SecretCode:  "4321",
	}

	if _, err := s.RegisterOfficer(ctx, guard.ID, input); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("security role registering officers: expected ErrDenied, got %v", err)
	}

	created, err := s.RegisterOfficer(ctx, admin.ID, input)
	if err != nil {
		t.Fatalf("admin register failed: %v", err)
	}
	if created.NationalIDEncrypted == "NID-100" || created.NationalIDEncrypted == "" {
		t.Fatalf("national ID must be stored encrypted")
	}
	if created.PasswordHash == "long-enough-pw" {
		t.Fatalf("password must be stored hashed")
	}

	// The new officer's code works at the gate immediately.
	got, err := s.AuthorizeBySecretCode(ctx, "4321")
	if err != nil {
		t.Fatalf("new officer's code not authorized: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected new officer, got %s", got.ID)
	}
}

func TestRegisterOfficerValidation(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()
	admin := seedOfficer(t, repo, v, "admin-1", "admin@site.example", domain.RoleAdmin, "admin-pass", "")

	base := RegisterOfficerInput{
		FirstName:   "New",
		LastName:    "Guard",
		Email:       "new@site.example",
		PhoneNumber: "555-0100",
		NationalID:  "NID-100",
		Role:        domain.RoleSecurity,
		Password:    "long-enough-pw",
	}

	cases := []struct {
		name   string
		mutate func(*RegisterOfficerInput)
	}{
		{"missing name", func(in *RegisterOfficerInput) { in.FirstName = " " }},
		{"bad email", func(in *RegisterOfficerInput) { in.Email = "not-an-email" }},
		{"missing national id", func(in *RegisterOfficerInput) { in.NationalID = "" }},
		{"short password", func(in *RegisterOfficerInput) { in.Password = "short" }},
		{"visitor role", func(in *RegisterOfficerInput) { in.Role = domain.RoleVisitor }},
		{"short secret code", func(in *RegisterOfficerInput) { in.SecretCode = "12" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := s.RegisterOfficer(ctx, admin.ID, in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateSecretCodeInvalidatesRoster(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	officer := seedOfficer(t, repo, v, "officer-1", "alice@site.example", domain.RoleSecurity, "", "1234")

	// Prime the roster cache.
	if _, err := s.AuthorizeBySecretCode(ctx, "1234"); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	if err := s.UpdateSecretCode(ctx, officer.ID, officer.ID, "8888"); err != nil {
		t.Fatalf("update own code failed: %v", err)
	}

	if _, err := s.AuthorizeBySecretCode(ctx, "1234"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("old code should be denied after update, got %v", err)
	}
	if _, err := s.AuthorizeBySecretCode(ctx, "8888"); err != nil {
		t.Fatalf("new code should authorize: %v", err)
	}
}

func TestUpdateSecretCodeOtherOfficerNeedsAdmin(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	admin := seedOfficer(t, repo, v, "admin-1", "admin@site.example", domain.RoleAdmin, "admin-pass", "")
	a := seedOfficer(t, repo, v, "officer-1", "a@site.example", domain.RoleSecurity, "", "1111")
	b := seedOfficer(t, repo, v, "officer-2", "b@site.example", domain.RoleSecurity, "", "2222")

	if err := s.UpdateSecretCode(ctx, a.ID, b.ID, "3333"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("peer changing another's code: expected ErrDenied, got %v", err)
	}
	if err := s.UpdateSecretCode(ctx, admin.ID, b.ID, "3333"); err != nil {
		t.Fatalf("admin changing code failed: %v", err)
	}
}

func TestDeactivateOfficer(t *testing.T) {
	s, repo, v := newTestAuthService(t)
	ctx := context.Background()

	admin := seedOfficer(t, repo, v, "admin-1", "admin@site.example", domain.RoleAdmin, "admin-pass", "")
	guard := seedOfficer(t, repo, v, "officer-1", "guard@site.example", domain.RoleSecurity, "", "1234")

	if err := s.DeactivateOfficer(ctx, admin.ID, admin.ID); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("self-deactivation: expected ErrInvalidInput, got %v", err)
	}

	if err := s.DeactivateOfficer(ctx, admin.ID, guard.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := s.AuthorizeBySecretCode(ctx, "1234"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("deactivated officer's code should be denied, got %v", err)
	}
}
