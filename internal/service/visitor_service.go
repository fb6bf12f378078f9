package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/gatehouse/internal/biometric"
	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/featureflags"
	"github.com/yourorg/gatehouse/internal/observability/metrics"
	"github.com/yourorg/gatehouse/internal/security/audit"
	"github.com/yourorg/gatehouse/internal/vault"
)

// FaceMatcher finds the closest enrolled visitor for a probe image.
type FaceMatcher interface {
	FindBestMatch(ctx context.Context, probe []byte, candidates []*domain.Visitor) (*biometric.Match, error)
}

// VisitorService registers visitors and resolves identity at the gate,
// by national ID or by face.
type VisitorService struct {
	visitorRepo domain.VisitorRepository
	banRepo     domain.BanRepository
	visitRepo   domain.VisitRepository
	auth        *AuthService
	vault       *vault.Vault
	matcher     FaceMatcher
	auditLog    *audit.Logger
	logger      *slog.Logger
}

func NewVisitorService(
	visitorRepo domain.VisitorRepository,
	banRepo domain.BanRepository,
	visitRepo domain.VisitRepository,
	authService *AuthService,
	v *vault.Vault,
	matcher FaceMatcher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *VisitorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisitorService{
		visitorRepo: visitorRepo,
		banRepo:     banRepo,
		visitRepo:   visitRepo,
		auth:        authService,
		vault:       v,
		matcher:     matcher,
		auditLog:    auditLog,
		logger:      logger,
	}
}

// RegisterVisitorInput carries the fields for enrolling a new visitor.
type RegisterVisitorInput struct {
	SecretCode  string `json:"secretCode"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	NationalID  string `json:"nationalId"`
	Photo       []byte `json:"photo,omitempty"` // optional reference image
}

// Register enrolls a visitor. The operating officer authorizes with their
// secret code; the national ID is stored encrypted with a separate digest
// for exact lookup.
func (s *VisitorService) Register(ctx context.Context, input RegisterVisitorInput) (*domain.Visitor, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, input.SecretCode)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return nil, fmt.Errorf("%w: phone number is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(input.NationalID) == "" {
		return nil, fmt.Errorf("%w: national ID is required", domain.ErrInvalidInput)
	}

	nationalID := strings.TrimSpace(input.NationalID)
	encrypted, err := s.vault.Encrypt(nationalID)
	if err != nil {
		return nil, err
	}

	visitor := &domain.Visitor{
		ID:                  uuid.NewString(),
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		PhoneNumber:         strings.TrimSpace(input.PhoneNumber),
		NationalIDEncrypted: encrypted,
		NationalIDDigest:    s.vault.LookupDigest(nationalID),
		Photo:               input.Photo,
	}

	if err := s.visitorRepo.Create(ctx, visitor); err != nil {
		return nil, err
	}

	s.auditLog.LogAction(ctx, officer.ID, "register_visitor", "visitor", visitor.ID, "success", "")
	s.logger.Info("visitor registered",
		slog.String("visitor_id", visitor.ID),
		slog.Bool("has_photo", visitor.HasPhoto()),
	)
	return visitor, nil
}

// IdentifyInput is one identification attempt: exactly one of NationalID
// or Photo must be present.
type IdentifyInput struct {
	SecretCode string `json:"secretCode"`
	NationalID string `json:"nationalId,omitempty"`
	Photo      []byte `json:"photo,omitempty"`
}

// IdentifyResult is the resolved visitor plus how they were resolved.
type IdentifyResult struct {
	Visitor  *domain.Visitor `json:"visitor"`
	Method   string          `json:"method"` // "national_id" or "face"
	Distance float64         `json:"distance,omitempty"`
}

// Identify resolves a visitor by whichever credential was presented. The
// operating officer authorizes with their secret code first.
func (s *VisitorService) Identify(ctx context.Context, input IdentifyInput) (*IdentifyResult, error) {
	if _, err := s.auth.AuthorizeBySecretCode(ctx, input.SecretCode); err != nil {
		return nil, err
	}

	switch {
	case input.NationalID != "" && len(input.Photo) > 0:
		return nil, fmt.Errorf("%w: present a national ID or a photo, not both", domain.ErrInvalidInput)
	case input.NationalID != "":
		visitor, err := s.ResolveByNationalID(ctx, input.NationalID)
		if err != nil {
			metrics.ObserveIdentification("national_id", "no_match")
			return nil, err
		}
		metrics.ObserveIdentification("national_id", "match")
		return &IdentifyResult{Visitor: visitor, Method: "national_id"}, nil
	case len(input.Photo) > 0:
		return s.resolveByFace(ctx, input.Photo)
	default:
		return nil, fmt.Errorf("%w: a national ID or a photo is required", domain.ErrInvalidInput)
	}
}

// ResolveByNationalID looks a visitor up by exact national ID.
func (s *VisitorService) ResolveByNationalID(ctx context.Context, nationalID string) (*domain.Visitor, error) {
	digest := s.vault.LookupDigest(strings.TrimSpace(nationalID))
	return s.visitorRepo.GetByNationalIDDigest(ctx, digest)
}

func (s *VisitorService) resolveByFace(ctx context.Context, photo []byte) (*IdentifyResult, error) {
	if featureflags.Enabled(featureflags.FaceIdentifyDisabled) {
		s.logger.Warn("face identification disabled by flag")
		return nil, fmt.Errorf("%w: face identification is disabled", domain.ErrInvalidInput)
	}

	candidates, err := s.visitorRepo.ListWithPhoto(ctx)
	if err != nil {
		return nil, fmt.Errorf("load enrolled visitors: %w", err)
	}

	start := time.Now()
	match, err := s.matcher.FindBestMatch(ctx, photo, candidates)
	if err != nil {
		metrics.ObserveFaceMatch(faceResultLabel(err), time.Since(start))
		metrics.ObserveIdentification("face", faceResultLabel(err))
		// An unenrolled face is simply an unknown person at the gate.
		if errors.Is(err, domain.ErrNoMatch) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	metrics.ObserveFaceMatch("match", time.Since(start))
	metrics.ObserveIdentification("face", "match")
	s.logger.Info("face identified",
		slog.String("visitor_id", match.Visitor.ID),
		slog.Float64("distance", match.Distance),
	)
	return &IdentifyResult{Visitor: match.Visitor, Method: "face", Distance: match.Distance}, nil
}

func faceResultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		return "no_match"
	case errors.Is(err, domain.ErrNoFaceDetected):
		return "no_face"
	case errors.Is(err, domain.ErrCorruptImage):
		return "corrupt_image"
	case errors.Is(err, domain.ErrMatchTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// BanContext is the active ban shown on a profile, with the issuing
// officer's name resolved for display.
type BanContext struct {
	Ban          *domain.Ban `json:"ban"`
	IssuedByName string      `json:"issuedByName,omitempty"`
}

// Profile is a visitor with their current state at the gate.
type Profile struct {
	Visitor   *domain.Visitor `json:"visitor"`
	OpenVisit *domain.Visit   `json:"openVisit,omitempty"`
	ActiveBan *BanContext     `json:"activeBan,omitempty"`
}

// GetProfile returns a visitor with their open visit and active ban, if any.
func (s *VisitorService) GetProfile(ctx context.Context, visitorID string) (*Profile, error) {
	visitor, err := s.visitorRepo.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{Visitor: visitor}

	if latest, err := s.visitRepo.Latest(ctx, visitorID); err == nil && latest.Open() {
		profile.OpenVisit = latest
	}

	if ban, err := s.banRepo.GetActive(ctx, visitorID); err == nil {
		bc := &BanContext{Ban: ban}
		if issuer, err := s.auth.personnelRepo.GetByID(ctx, ban.IssuedByID); err == nil {
			bc.IssuedByName = issuer.FirstName + " " + issuer.LastName
		}
		profile.ActiveBan = bc
	}

	return profile, nil
}

// ListVisitors pages through enrolled visitors.
func (s *VisitorService) ListVisitors(ctx context.Context, limit, offset int) ([]*domain.Visitor, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.visitorRepo.List(ctx, limit, offset)
}

// VisitHistory pages through a visitor's visits, newest first.
func (s *VisitorService) VisitHistory(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Visit, error) {
	if _, err := s.visitorRepo.GetByID(ctx, visitorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.visitRepo.ListForVisitor(ctx, visitorID, limit, offset)
}

// BanHistory pages through a visitor's bans, newest first.
func (s *VisitorService) BanHistory(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Ban, error) {
	if _, err := s.visitorRepo.GetByID(ctx, visitorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.banRepo.ListForVisitor(ctx, visitorID, limit, offset)
}
