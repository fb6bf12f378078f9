package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/security/audit"
	"github.com/yourorg/gatehouse/internal/vault"
)

type gateFixture struct {
	gate      *GateService
	visitors  *memVisitorRepo
	visits    *memVisitRepo
	bans      *memBanRepo
	incidents *memIncidentRepo
	publisher *capturePublisher
	officer   *domain.Person
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	v, err := vault.New("test-master-key")
	if err != nil {
		t.Fatalf("vault init: %v", err)
	}
	personnelRepo := newMemPersonnelRepo()
	visitorRepo := newMemVisitorRepo()
	visitRepo := newMemVisitRepo(visitorRepo)
	banRepo := newMemBanRepo(visitorRepo)
	incidentRepo := newMemIncidentRepo()
	auditLog := audit.NewLogger(nil)

	authSvc := NewAuthService(personnelRepo, v, nil, time.Hour, auditLog, nil)
	officer := seedOfficer(t, personnelRepo, v, "officer-1", "guard@site.example", domain.RoleSecurity, "", "1234")

	publisher := &capturePublisher{}
	gate := NewGateService(visitorRepo, visitRepo, banRepo, incidentRepo, authSvc, publisher, auditLog, nil)

	return &gateFixture{
		gate:      gate,
		visitors:  visitorRepo,
		visits:    visitRepo,
		bans:      banRepo,
		incidents: incidentRepo,
		publisher: publisher,
		officer:   officer,
	}
}

func seedVisitor(t *testing.T, f *gateFixture, id string) *domain.Visitor {
	t.Helper()
	visitor := &domain.Visitor{
		ID:               id,
		FirstName:        "Vera",
		LastName:         "Visitor",
		PhoneNumber:      "555-" + id,
		NationalIDDigest: "digest-" + id,
	}
	if err := f.visitors.Create(context.Background(), visitor); err != nil {
		t.Fatalf("seed visitor: %v", err)
	}
	return visitor
}

func TestCheckInCheckOut(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	visit, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting")
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}
	if !visit.Open() || visit.ApprovedByID != f.officer.ID {
		t.Fatalf("unexpected visit %+v", visit)
	}

	// Second check-in while present is refused.
	if _, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "again"); !errors.Is(err, domain.ErrAlreadyPresent) {
		t.Fatalf("expected ErrAlreadyPresent, got %v", err)
	}

	closed, err := f.gate.CheckOut(ctx, "1234", visit.ID)
	if err != nil {
		t.Fatalf("check out failed: %v", err)
	}
	if closed.Open() || closed.LeaveTime == nil {
		t.Fatalf("visit should be closed with a leave time")
	}
	if closed.LeftApprovedByID == nil || *closed.LeftApprovedByID != f.officer.ID {
		t.Fatalf("closing officer must be recorded")
	}

	// After leaving, a fresh check-in opens a new visit.
	second, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "return trip")
	if err != nil {
		t.Fatalf("re-entry failed: %v", err)
	}
	if second.ID == visit.ID {
		t.Fatalf("re-entry must create a new visit")
	}
}

func TestCheckInDeniedWithoutValidCode(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	if _, err := f.gate.CheckIn(ctx, "wrong", visitor.ID, "meeting"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if n, _ := f.visits.CountOpen(ctx); n != 0 {
		t.Fatalf("denied check-in must not open a visit")
	}
}

func TestCheckInRequiresReason(t *testing.T) {
	f := newGateFixture(t)
	visitor := seedVisitor(t, f, "v1")

	if _, err := f.gate.CheckIn(context.Background(), "1234", visitor.ID, "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCheckOutTwiceNeverRevisesTimestamps(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	visit, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting")
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}
	closed, err := f.gate.CheckOut(ctx, "1234", visit.ID)
	if err != nil {
		t.Fatalf("check out failed: %v", err)
	}
	firstLeave := *closed.LeaveTime

	if _, err := f.gate.CheckOut(ctx, "1234", visit.ID); !errors.Is(err, domain.ErrAlreadyLeft) {
		t.Fatalf("expected ErrAlreadyLeft, got %v", err)
	}

	stored, err := f.visits.GetByID(ctx, visit.ID)
	if err != nil {
		t.Fatalf("get visit: %v", err)
	}
	if !stored.LeaveTime.Equal(firstLeave) {
		t.Fatalf("leave time was revised by a failed checkout")
	}
}

func TestBanBlocksEntryUntilLifted(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	ban, err := f.gate.IssueBan(ctx, "1234", visitor.ID, "aggressive behavior")
	if err != nil {
		t.Fatalf("issue ban failed: %v", err)
	}
	if ban.IssuedByID != f.officer.ID {
		t.Fatalf("issuing officer must be recorded")
	}

	if _, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting"); !errors.Is(err, domain.ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}

	// A second ban while one is active is refused.
	if _, err := f.gate.IssueBan(ctx, "1234", visitor.ID, "again"); !errors.Is(err, domain.ErrAlreadyBanned) {
		t.Fatalf("expected ErrAlreadyBanned, got %v", err)
	}

	lifted, err := f.gate.LiftBan(ctx, "1234", visitor.ID)
	if err != nil {
		t.Fatalf("lift ban failed: %v", err)
	}
	if lifted.LiftedAt == nil || lifted.LiftedByID == nil || *lifted.LiftedByID != f.officer.ID {
		t.Fatalf("lifted ban must record when and by whom")
	}

	// Entry works again and the ban stays on record.
	if _, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting"); err != nil {
		t.Fatalf("check in after lift failed: %v", err)
	}
	history, err := f.bans.ListForVisitor(ctx, visitor.ID, 10, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("lifted ban must remain in history, got %d err %v", len(history), err)
	}
}

func TestLiftBanWithoutActiveBan(t *testing.T) {
	f := newGateFixture(t)
	visitor := seedVisitor(t, f, "v1")

	if _, err := f.gate.LiftBan(context.Background(), "1234", visitor.ID); !errors.Is(err, domain.ErrNoActiveBan) {
		t.Fatalf("expected ErrNoActiveBan, got %v", err)
	}
}

func TestBanDoesNotCloseOpenVisit(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	visit, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting")
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}

	ban, err := f.gate.IssueBan(ctx, "1234", visitor.ID, "escorted out")
	if err != nil {
		t.Fatalf("issue ban failed: %v", err)
	}
	if ban.VisitID == nil || *ban.VisitID != visit.ID {
		t.Fatalf("ban should reference the open visit it arose from")
	}

	// The visit is still open and checks out normally.
	stored, _ := f.visits.GetByID(ctx, visit.ID)
	if !stored.Open() {
		t.Fatalf("issuing a ban must not close the open visit")
	}
	if _, err := f.gate.CheckOut(ctx, "1234", visit.ID); err != nil {
		t.Fatalf("checkout of a banned visitor's open visit failed: %v", err)
	}
}

func TestRecordIncident(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	// No visit history yet.
	if _, err := f.gate.RecordIncident(ctx, "1234", visitor.ID, "loitering"); !errors.Is(err, domain.ErrNoVisitContext) {
		t.Fatalf("expected ErrNoVisitContext, got %v", err)
	}

	visit, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting")
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}

	incident, err := f.gate.RecordIncident(ctx, "1234", visitor.ID, "tailgating attempt")
	if err != nil {
		t.Fatalf("record incident failed: %v", err)
	}
	if incident.VisitID != visit.ID {
		t.Fatalf("incident must attach to the latest visit")
	}
	if incident.RecordedByID != f.officer.ID {
		t.Fatalf("reporting officer must be recorded")
	}

	// Incidents attach to the latest visit even after it closes.
	if _, err := f.gate.CheckOut(ctx, "1234", visit.ID); err != nil {
		t.Fatalf("check out failed: %v", err)
	}
	later, err := f.gate.RecordIncident(ctx, "1234", visitor.ID, "left a package")
	if err != nil {
		t.Fatalf("record incident after leave failed: %v", err)
	}
	if later.VisitID != visit.ID {
		t.Fatalf("incident after leave must attach to the most recent visit")
	}

	detail, err := f.gate.GetVisit(ctx, visit.ID)
	if err != nil || len(detail.Incidents) != 2 {
		t.Fatalf("expected 2 incidents on visit, got %d err %v", len(detail.Incidents), err)
	}
	if detail.Incidents[0].Description != "tailgating attempt" {
		t.Fatalf("incidents for a visit must be oldest first")
	}
	if detail.Visit.ID != visit.ID {
		t.Fatalf("detail must carry the visit itself")
	}
}

func TestRecordIncidentPropagatesStorageFailures(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	if _, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting"); err != nil {
		t.Fatalf("check in failed: %v", err)
	}

	// A storage failure while loading the visit must not masquerade as
	// missing visit history.
	storageErr := errors.New("pq: connection refused")
	f.visits.latestErr = storageErr

	_, err := f.gate.RecordIncident(ctx, "1234", visitor.ID, "loitering")
	if errors.Is(err, domain.ErrNoVisitContext) {
		t.Fatalf("storage failure reported as missing visit history")
	}
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestConcurrentCheckInsOnlyOneSucceeds(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	const attempts = 16
	errs := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "delivery")
			errs <- err
		}()
	}
	start.Done()

	succeeded := 0
	for i := 0; i < attempts; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyPresent):
		default:
			t.Fatalf("unexpected check-in error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one concurrent check-in to succeed, got %d", succeeded)
	}
	if n, err := f.gate.OnSiteCount(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 visitor on site, got %d err %v", n, err)
	}
}

func TestGateEventsPublished(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	visitor := seedVisitor(t, f, "v1")

	visit, err := f.gate.CheckIn(ctx, "1234", visitor.ID, "meeting")
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}
	if _, err := f.gate.RecordIncident(ctx, "1234", visitor.ID, "note"); err != nil {
		t.Fatalf("record incident failed: %v", err)
	}
	if _, err := f.gate.CheckOut(ctx, "1234", visit.ID); err != nil {
		t.Fatalf("check out failed: %v", err)
	}
	if _, err := f.gate.IssueBan(ctx, "1234", visitor.ID, "reason"); err != nil {
		t.Fatalf("issue ban failed: %v", err)
	}
	if _, err := f.gate.LiftBan(ctx, "1234", visitor.ID); err != nil {
		t.Fatalf("lift ban failed: %v", err)
	}

	want := []string{"check_in", "incident", "check_out", "ban", "unban"}
	got := f.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Denied operations publish nothing.
	before := len(f.publisher.types())
	if _, err := f.gate.CheckIn(ctx, "wrong", visitor.ID, "meeting"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if len(f.publisher.types()) != before {
		t.Fatalf("denied operation must not publish an event")
	}
}

func TestOnSiteCount(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	a := seedVisitor(t, f, "v1")
	b := seedVisitor(t, f, "v2")

	if _, err := f.gate.CheckIn(ctx, "1234", a.ID, "meeting"); err != nil {
		t.Fatalf("check in a: %v", err)
	}
	visitB, err := f.gate.CheckIn(ctx, "1234", b.ID, "delivery")
	if err != nil {
		t.Fatalf("check in b: %v", err)
	}

	if n, err := f.gate.OnSiteCount(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 on site, got %d err %v", n, err)
	}

	if _, err := f.gate.CheckOut(ctx, "1234", visitB.ID); err != nil {
		t.Fatalf("check out b: %v", err)
	}
	if n, err := f.gate.OnSiteCount(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 on site, got %d err %v", n, err)
	}
}
