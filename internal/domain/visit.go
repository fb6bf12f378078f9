package domain

import (
	"context"
	"time"
)

// VisitStatus is the lifecycle state of a single presence event.
type VisitStatus string

const (
	VisitStatusVisit VisitStatus = "visit"
	VisitStatusLeave VisitStatus = "leave"
)

// Visit records one physical presence event. A visitor has at most one visit
// with status "visit" at any time; the storage layer enforces this with a
// partial unique index beneath the transactional check.
type Visit struct {
	ID               string      `json:"id"` // UUID
	VisitorID        string      `json:"visitorId"`
	Reason           string      `json:"reason"`
	Status           VisitStatus `json:"status"`
	VisitTime        time.Time   `json:"visitTime"`
	LeaveTime        *time.Time  `json:"leaveTime"`
	ApprovedByID     string      `json:"approvedById"`
	LeftApprovedByID *string     `json:"leftApprovedById"`
}

// Open reports whether the visitor is still marked present on this visit.
func (v *Visit) Open() bool { return v.Status == VisitStatusVisit }

// Ban bars a visitor from entry until lifted. At most one ban per visitor
// may have a null lifted_at.
type Ban struct {
	ID         string     `json:"id"` // UUID
	VisitorID  string     `json:"visitorId"`
	VisitID    *string    `json:"visitId"` // originating visit, if any
	Reason     string     `json:"reason"`
	IssuedByID string     `json:"issuedById"`
	IssuedAt   time.Time  `json:"issuedAt"`
	LiftedAt   *time.Time `json:"liftedAt"`
	LiftedByID *string    `json:"liftedById"`
}

// Active reports whether the ban is still in force.
func (b *Ban) Active() bool { return b.LiftedAt == nil }

// Incident is an append-only log entry attached to a visitor's most recent
// visit at the time it was reported.
type Incident struct {
	ID           string    `json:"id"` // UUID
	VisitorID    string    `json:"visitorId"`
	VisitID      string    `json:"visitId"`
	Description  string    `json:"description"`
	RecordedByID string    `json:"recordedById"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// VisitRepository defines data access for visits. Mutations that guard
// state-machine invariants run as single transactions against the store.
type VisitRepository interface {
	// CreateOpen inserts a new open visit. In one transaction it verifies the
	// visitor exists and is not banned, then inserts; a concurrent open visit
	// surfaces as ErrAlreadyPresent via the partial unique index.
	CreateOpen(ctx context.Context, visit *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	// Close marks a visit as left. Returns ErrNotFound for an unknown visit
	// and ErrAlreadyLeft if it was closed before; never mutates visit_time.
	Close(ctx context.Context, visitID, officerID string, leaveTime time.Time) (*Visit, error)
	// Latest returns the visitor's most recent visit by visit time, open or
	// closed. ErrNotFound when the visitor has no visit history.
	Latest(ctx context.Context, visitorID string) (*Visit, error)
	ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*Visit, error)
	ListApprovedBy(ctx context.Context, officerID string, limit, offset int) ([]*Visit, error)
	// CountOpen returns the number of visitors currently on site.
	CountOpen(ctx context.Context) (int, error)
}

// BanRepository defines data access for bans.
type BanRepository interface {
	// Issue creates a ban and flips the visitor's banned flag in one
	// transaction. ErrAlreadyBanned if an active ban exists.
	Issue(ctx context.Context, ban *Ban) error
	// Lift closes the active ban and clears the banned flag in one
	// transaction. ErrNoActiveBan if none exists.
	Lift(ctx context.Context, visitorID, officerID string, at time.Time) (*Ban, error)
	// GetActive returns the visitor's unlifted ban, ErrNotFound if none.
	GetActive(ctx context.Context, visitorID string) (*Ban, error)
	ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*Ban, error)
	ListIssuedBy(ctx context.Context, officerID string, limit, offset int) ([]*Ban, error)
}

// IncidentRepository defines data access for incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *Incident) error
	GetByID(ctx context.Context, id string) (*Incident, error)
	ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*Incident, error)
	ListForVisit(ctx context.Context, visitID string) ([]*Incident, error)
	ListRecordedBy(ctx context.Context, officerID string, limit, offset int) ([]*Incident, error)
}
