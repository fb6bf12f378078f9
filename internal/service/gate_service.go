package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/observability/metrics"
	"github.com/yourorg/gatehouse/internal/security/audit"
)

// Event is one entry on the live activity feed.
type Event struct {
	Type      string    `json:"type"` // check_in, check_out, ban, unban, incident
	VisitorID string    `json:"visitorId"`
	OfficerID string    `json:"officerId"`
	VisitID   string    `json:"visitId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher pushes gate events to live subscribers. Implementations
// must not block; publishing is best-effort.
type EventPublisher interface {
	Publish(event Event)
}

// GateService runs the visit and ban state machine. Every operation is
// authorized by the operating officer's secret code before state changes.
type GateService struct {
	visitorRepo  domain.VisitorRepository
	visitRepo    domain.VisitRepository
	banRepo      domain.BanRepository
	incidentRepo domain.IncidentRepository
	auth         *AuthService
	publisher    EventPublisher
	auditLog     *audit.Logger
	logger       *slog.Logger
}

func NewGateService(
	visitorRepo domain.VisitorRepository,
	visitRepo domain.VisitRepository,
	banRepo domain.BanRepository,
	incidentRepo domain.IncidentRepository,
	authService *AuthService,
	publisher EventPublisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *GateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GateService{
		visitorRepo:  visitorRepo,
		visitRepo:    visitRepo,
		banRepo:      banRepo,
		incidentRepo: incidentRepo,
		auth:         authService,
		publisher:    publisher,
		auditLog:     auditLog,
		logger:       logger,
	}
}

func (s *GateService) publish(event Event) {
	if s.publisher == nil {
		return
	}
	event.At = time.Now().UTC()
	s.publisher.Publish(event)
}

// CheckIn opens a visit for the visitor. Fails with ErrBanned while an
// active ban exists and ErrAlreadyPresent while a visit is already open.
func (s *GateService) CheckIn(ctx context.Context, secretCode, visitorID, reason string) (*domain.Visit, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, secretCode)
	if err != nil {
		metrics.ObserveGateTransition("check_in", "denied")
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a visit reason is required", domain.ErrInvalidInput)
	}

	visit := &domain.Visit{
		ID:           uuid.NewString(),
		VisitorID:    visitorID,
		Reason:       strings.TrimSpace(reason),
		Status:       domain.VisitStatusVisit,
		VisitTime:    time.Now().UTC(),
		ApprovedByID: officer.ID,
	}

	if err := s.visitRepo.CreateOpen(ctx, visit); err != nil {
		metrics.ObserveGateTransition("check_in", transitionResultLabel(err))
		s.auditLog.LogCheckIn(ctx, officer.ID, visit.ID, "failed")
		return nil, err
	}

	metrics.ObserveGateTransition("check_in", "success")
	metrics.IncrementOnSite()
	s.auditLog.LogCheckIn(ctx, officer.ID, visit.ID, "success")
	s.publish(Event{Type: "check_in", VisitorID: visitorID, OfficerID: officer.ID, VisitID: visit.ID, Detail: visit.Reason})
	s.logger.Info("visitor checked in",
		slog.String("visit_id", visit.ID),
		slog.String("visitor_id", visitorID),
		slog.String("officer_id", officer.ID),
	)
	return visit, nil
}

// CheckOut closes an open visit. ErrAlreadyLeft if the visit is closed;
// a closed visit's timestamps are never revised.
func (s *GateService) CheckOut(ctx context.Context, secretCode, visitID string) (*domain.Visit, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, secretCode)
	if err != nil {
		metrics.ObserveGateTransition("check_out", "denied")
		return nil, err
	}

	visit, err := s.visitRepo.Close(ctx, visitID, officer.ID, time.Now().UTC())
	if err != nil {
		metrics.ObserveGateTransition("check_out", transitionResultLabel(err))
		s.auditLog.LogCheckOut(ctx, officer.ID, visitID, "failed")
		return nil, err
	}

	metrics.ObserveGateTransition("check_out", "success")
	metrics.DecrementOnSite()
	s.auditLog.LogCheckOut(ctx, officer.ID, visit.ID, "success")
	s.publish(Event{Type: "check_out", VisitorID: visit.VisitorID, OfficerID: officer.ID, VisitID: visit.ID})
	s.logger.Info("visitor checked out",
		slog.String("visit_id", visit.ID),
		slog.String("visitor_id", visit.VisitorID),
		slog.String("officer_id", officer.ID),
	)
	return visit, nil
}

// IssueBan bars a visitor from entry. A ban does not close an open visit;
// the visitor still checks out normally and is refused next time.
func (s *GateService) IssueBan(ctx context.Context, secretCode, visitorID, reason string) (*domain.Ban, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, secretCode)
	if err != nil {
		metrics.ObserveGateTransition("ban", "denied")
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a ban reason is required", domain.ErrInvalidInput)
	}

	ban := &domain.Ban{
		ID:         uuid.NewString(),
		VisitorID:  visitorID,
		Reason:     strings.TrimSpace(reason),
		IssuedByID: officer.ID,
		IssuedAt:   time.Now().UTC(),
	}

	// Tie the ban to the visit it arose from, when one is open.
	if latest, err := s.visitRepo.Latest(ctx, visitorID); err == nil && latest.Open() {
		ban.VisitID = &latest.ID
	}

	if err := s.banRepo.Issue(ctx, ban); err != nil {
		metrics.ObserveGateTransition("ban", transitionResultLabel(err))
		s.auditLog.LogBan(ctx, officer.ID, visitorID, "failed", ban.Reason)
		return nil, err
	}

	metrics.ObserveGateTransition("ban", "success")
	s.auditLog.LogBan(ctx, officer.ID, visitorID, "success", ban.Reason)
	s.publish(Event{Type: "ban", VisitorID: visitorID, OfficerID: officer.ID, Detail: ban.Reason})
	s.logger.Info("ban issued",
		slog.String("ban_id", ban.ID),
		slog.String("visitor_id", visitorID),
		slog.String("officer_id", officer.ID),
	)
	return ban, nil
}

// LiftBan closes the visitor's active ban. ErrNoActiveBan when none exists;
// lifted bans stay on record.
func (s *GateService) LiftBan(ctx context.Context, secretCode, visitorID string) (*domain.Ban, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, secretCode)
	if err != nil {
		metrics.ObserveGateTransition("unban", "denied")
		return nil, err
	}

	ban, err := s.banRepo.Lift(ctx, visitorID, officer.ID, time.Now().UTC())
	if err != nil {
		metrics.ObserveGateTransition("unban", transitionResultLabel(err))
		s.auditLog.LogUnban(ctx, officer.ID, visitorID, "failed")
		return nil, err
	}

	metrics.ObserveGateTransition("unban", "success")
	s.auditLog.LogUnban(ctx, officer.ID, visitorID, "success")
	s.publish(Event{Type: "unban", VisitorID: visitorID, OfficerID: officer.ID})
	s.logger.Info("ban lifted",
		slog.String("ban_id", ban.ID),
		slog.String("visitor_id", visitorID),
		slog.String("officer_id", officer.ID),
	)
	return ban, nil
}

// RecordIncident attaches a report to the visitor's most recent visit.
// ErrNoVisitContext when the visitor has never visited.
func (s *GateService) RecordIncident(ctx context.Context, secretCode, visitorID, description string) (*domain.Incident, error) {
	officer, err := s.auth.AuthorizeBySecretCode(ctx, secretCode)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: an incident description is required", domain.ErrInvalidInput)
	}

	if _, err := s.visitorRepo.GetByID(ctx, visitorID); err != nil {
		return nil, err
	}

	latest, err := s.visitRepo.Latest(ctx, visitorID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoVisitContext
	}
	if err != nil {
		return nil, fmt.Errorf("load latest visit: %w", err)
	}

	incident := &domain.Incident{
		ID:           uuid.NewString(),
		VisitorID:    visitorID,
		VisitID:      latest.ID,
		Description:  strings.TrimSpace(description),
		RecordedByID: officer.ID,
		RecordedAt:   time.Now().UTC(),
	}

	if err := s.incidentRepo.Create(ctx, incident); err != nil {
		return nil, err
	}

	s.auditLog.LogAction(ctx, officer.ID, "record_incident", "incident", incident.ID, "success", "")
	s.publish(Event{Type: "incident", VisitorID: visitorID, OfficerID: officer.ID, VisitID: latest.ID, Detail: incident.Description})
	s.logger.Info("incident recorded",
		slog.String("incident_id", incident.ID),
		slog.String("visitor_id", visitorID),
		slog.String("visit_id", latest.ID),
	)
	return incident, nil
}

// VisitDetail is one visit with its incident reports.
type VisitDetail struct {
	Visit     *domain.Visit      `json:"visit"`
	Incidents []*domain.Incident `json:"incidents"`
}

// GetVisit returns a visit with its incidents, oldest incident first.
func (s *GateService) GetVisit(ctx context.Context, visitID string) (*VisitDetail, error) {
	visit, err := s.visitRepo.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	incidents, err := s.incidentRepo.ListForVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return &VisitDetail{Visit: visit, Incidents: incidents}, nil
}

// OfficerActivity summarizes what an officer has authorized: visits
// approved, bans issued, incidents recorded, newest first.
type OfficerActivity struct {
	Visits    []*domain.Visit    `json:"visits"`
	Bans      []*domain.Ban      `json:"bans"`
	Incidents []*domain.Incident `json:"incidents"`
}

// ActivityForOfficer returns an officer's recent activity.
func (s *GateService) ActivityForOfficer(ctx context.Context, officerID string, limit int) (*OfficerActivity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	visits, err := s.visitRepo.ListApprovedBy(ctx, officerID, limit, 0)
	if err != nil {
		return nil, err
	}
	bans, err := s.banRepo.ListIssuedBy(ctx, officerID, limit, 0)
	if err != nil {
		return nil, err
	}
	incidents, err := s.incidentRepo.ListRecordedBy(ctx, officerID, limit, 0)
	if err != nil {
		return nil, err
	}
	return &OfficerActivity{Visits: visits, Bans: bans, Incidents: incidents}, nil
}

// IncidentHistory pages through a visitor's incidents, newest first.
func (s *GateService) IncidentHistory(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Incident, error) {
	if _, err := s.visitorRepo.GetByID(ctx, visitorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.incidentRepo.ListForVisitor(ctx, visitorID, limit, offset)
}

// OnSiteCount returns the number of visitors currently checked in and
// refreshes the gauge from storage.
func (s *GateService) OnSiteCount(ctx context.Context) (int, error) {
	count, err := s.visitRepo.CountOpen(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetVisitorsOnSite(count)
	return count, nil
}

func transitionResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrBanned):
		return "banned"
	case domain.IsConflict(err):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
