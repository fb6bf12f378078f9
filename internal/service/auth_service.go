package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/observability/metrics"
	"github.com/yourorg/gatehouse/internal/security/audit"
	"github.com/yourorg/gatehouse/internal/security/auth"
	"github.com/yourorg/gatehouse/internal/vault"
	"github.com/yourorg/gatehouse/pkg/cache"
)

const (
	rosterCacheKey = "auth:secret-code-roster"
	rosterCacheTTL = 30 * time.Second

	minPasswordLength   = 8
	minSecretCodeLength = 4
)

// AuthService authorizes gate operations by secret code and manages
// officer accounts and dashboard sessions.
type AuthService struct {
	personnelRepo domain.PersonnelRepository
	vault         *vault.Vault
	tokens        *auth.TokenManager
	tokenTTL      time.Duration
	roster        *cache.Cache
	auditLog      *audit.Logger
	logger        *slog.Logger
}

func NewAuthService(
	personnelRepo domain.PersonnelRepository,
	v *vault.Vault,
	tokens *auth.TokenManager,
	tokenTTL time.Duration,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		personnelRepo: personnelRepo,
		vault:         v,
		tokens:        tokens,
		tokenTTL:      tokenTTL,
		roster:        cache.New(),
		auditLog:      auditLog,
		logger:        logger,
	}
}

// AuthorizeBySecretCode resolves a presented code to the officer it belongs
// to. The code names nobody, so the active roster is scanned and the first
// officer (in creation order) whose hash verifies wins. An empty code is
// denied without touching the roster.
func (s *AuthService) AuthorizeBySecretCode(ctx context.Context, code string) (*domain.Person, error) {
	if code == "" {
		metrics.ObserveSecretCodeCheck("denied")
		s.auditLog.LogDenied(ctx, "empty secret code")
		return nil, domain.ErrDenied
	}

	roster, err := s.secretCodeRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load officer roster: %w", err)
	}

	for _, officer := range roster {
		if s.vault.VerifySecret(officer.SecretCodeHash, code) {
			metrics.ObserveSecretCodeCheck("authorized")
			return officer, nil
		}
	}

	metrics.ObserveSecretCodeCheck("denied")
	s.auditLog.LogDenied(ctx, "secret code did not match any active officer")
	return nil, domain.ErrDenied
}

func (s *AuthService) secretCodeRoster(ctx context.Context) ([]*domain.Person, error) {
	if cached, ok := s.roster.Get(rosterCacheKey); ok {
		if roster, ok := cached.([]*domain.Person); ok {
			return roster, nil
		}
	}
	roster, err := s.personnelRepo.ListActiveWithSecretCode(ctx)
	if err != nil {
		return nil, err
	}
	s.roster.Set(rosterCacheKey, roster, rosterCacheTTL)
	return roster, nil
}

func (s *AuthService) invalidateRoster() {
	s.roster.Delete(rosterCacheKey)
}

// LoginResult is the dashboard session issued on successful login.
type LoginResult struct {
	OfficerID string      `json:"officerId"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expiresIn"` // seconds
	TokenType string      `json:"tokenType"`
}

// Login authenticates an officer by email and password. Unknown email,
// wrong password and deactivated account all return the same ErrDenied so
// responses never reveal which part failed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, domain.ErrDenied
	}

	officer, err := s.personnelRepo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		s.auditLog.LogAction(ctx, "", "login", "session", "", "denied", "unknown email")
		return nil, domain.ErrDenied
	}
	if !officer.IsActive || !s.vault.VerifySecret(officer.PasswordHash, password) {
		s.auditLog.LogAction(ctx, officer.ID, "login", "session", "", "denied", "")
		return nil, domain.ErrDenied
	}

	token, err := s.tokens.GenerateToken(officer.ID, officer.Email, officer.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.auditLog.LogAction(ctx, officer.ID, "login", "session", "", "success", "")
	return &LoginResult{
		OfficerID: officer.ID,
		Email:     officer.Email,
		Role:      officer.Role,
		Token:     token,
		ExpiresIn: int(s.tokenTTL.Seconds()),
		TokenType: "Bearer",
	}, nil
}

// RequireCapability loads the acting officer and checks the capability.
// A deactivated officer is denied even with a still-valid token.
func (s *AuthService) RequireCapability(ctx context.Context, officerID string, capability domain.Capability) (*domain.Person, error) {
	officer, err := s.personnelRepo.GetByID(ctx, officerID)
	if err != nil {
		return nil, domain.ErrDenied
	}
	if !officer.IsActive || !domain.HasCapability(officer.Role, capability) {
		return nil, domain.ErrDenied
	}
	return officer, nil
}

// RegisterOfficerInput carries the fields for a new officer account.
type RegisterOfficerInput struct {
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Email       string      `json:"email"`
	PhoneNumber string      `json:"phoneNumber"`
	NationalID  string      `json:"nationalId"`
	Role        domain.Role `json:"role"`
	Password    string      `json:"password"`
	SecretCode  string      `json:"secretCode"` // optional at creation
}

// RegisterOfficer creates a security or admin account. Admin only.
func (s *AuthService) RegisterOfficer(ctx context.Context, actorID string, input RegisterOfficerInput) (*domain.Person, error) {
	if _, err := s.RequireCapability(ctx, actorID, domain.CapabilityAdminOnly); err != nil {
		return nil, err
	}

	if err := validateOfficerInput(input); err != nil {
		return nil, err
	}

	encryptedNID, err := s.vault.Encrypt(input.NationalID)
	if err != nil {
		return nil, err
	}
	passwordHash, err := s.vault.HashSecret(input.Password)
	if err != nil {
		return nil, err
	}
	secretCodeHash := ""
	if input.SecretCode != "" {
		if len(input.SecretCode) < minSecretCodeLength {
			return nil, fmt.Errorf("%w: secret code must be at least %d characters", domain.ErrInvalidInput, minSecretCodeLength)
		}
		secretCodeHash, err = s.vault.HashSecret(input.SecretCode)
		if err != nil {
			return nil, err
		}
	}

	officer := &domain.Person{
		ID:                  uuid.NewString(),
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		Email:               strings.ToLower(strings.TrimSpace(input.Email)),
		PhoneNumber:         strings.TrimSpace(input.PhoneNumber),
		Role:                input.Role,
		NationalIDEncrypted: encryptedNID,
		PasswordHash:        passwordHash,
		SecretCodeHash:      secretCodeHash,
		IsActive:            true,
	}

	if err := s.personnelRepo.Create(ctx, officer); err != nil {
		return nil, err
	}

	s.invalidateRoster()
	s.auditLog.LogAction(ctx, actorID, "register_officer", "person", officer.ID, "success", string(officer.Role))
	s.logger.Info("officer registered",
		slog.String("officer_id", officer.ID),
		slog.String("role", string(officer.Role)),
	)
	return officer, nil
}

// UpdateSecretCode sets a new gate PIN for an officer. Officers may change
// their own code; admins may change anyone's.
func (s *AuthService) UpdateSecretCode(ctx context.Context, actorID, officerID, newCode string) error {
	if actorID != officerID {
		if _, err := s.RequireCapability(ctx, actorID, domain.CapabilityAdminOnly); err != nil {
			return err
		}
	}

	if len(newCode) < minSecretCodeLength {
		return fmt.Errorf("%w: secret code must be at least %d characters", domain.ErrInvalidInput, minSecretCodeLength)
	}

	officer, err := s.personnelRepo.GetByID(ctx, officerID)
	if err != nil {
		return err
	}

	hash, err := s.vault.HashSecret(newCode)
	if err != nil {
		return err
	}
	officer.SecretCodeHash = hash
	if err := s.personnelRepo.Update(ctx, officer); err != nil {
		return err
	}

	s.invalidateRoster()
	s.auditLog.LogAction(ctx, actorID, "update_secret_code", "person", officerID, "success", "")
	return nil
}

// DeactivateOfficer soft-deletes an officer account. Admin only; admins
// cannot deactivate themselves so a site is never left without one.
func (s *AuthService) DeactivateOfficer(ctx context.Context, actorID, officerID string) error {
	if _, err := s.RequireCapability(ctx, actorID, domain.CapabilityAdminOnly); err != nil {
		return err
	}
	if actorID == officerID {
		return fmt.Errorf("%w: cannot deactivate own account", domain.ErrInvalidInput)
	}

	if err := s.personnelRepo.Deactivate(ctx, officerID); err != nil {
		return err
	}

	s.invalidateRoster()
	s.auditLog.LogAction(ctx, actorID, "deactivate_officer", "person", officerID, "success", "")
	return nil
}

// GetOfficer returns an officer by ID. Admin only.
func (s *AuthService) GetOfficer(ctx context.Context, actorID, officerID string) (*domain.Person, error) {
	if _, err := s.RequireCapability(ctx, actorID, domain.CapabilityAdminOnly); err != nil {
		return nil, err
	}
	return s.personnelRepo.GetByID(ctx, officerID)
}

// ListOfficers pages through all officer accounts. Admin only.
func (s *AuthService) ListOfficers(ctx context.Context, actorID string, limit, offset int) ([]*domain.Person, error) {
	if _, err := s.RequireCapability(ctx, actorID, domain.CapabilityAdminOnly); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.personnelRepo.List(ctx, limit, offset)
}

func validateOfficerInput(input RegisterOfficerInput) error {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if input.NationalID == "" {
		return fmt.Errorf("%w: national ID is required", domain.ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if input.Role != domain.RoleSecurity && input.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: role must be security or admin", domain.ErrInvalidInput)
	}
	return nil
}
