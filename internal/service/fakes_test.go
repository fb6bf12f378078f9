package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/gatehouse/internal/biometric"
	"github.com/yourorg/gatehouse/internal/domain"
)

type memPersonnelRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Person
	byEmail map[string]*domain.Person
	order   []string
}

func newMemPersonnelRepo() *memPersonnelRepo {
	return &memPersonnelRepo{byID: map[string]*domain.Person{}, byEmail: map[string]*domain.Person{}}
}

func (m *memPersonnelRepo) Create(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[p.Email]; exists {
		return domain.ErrDuplicate
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = p
	m.byEmail[p.Email] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memPersonnelRepo) GetByID(_ context.Context, id string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPersonnelRepo) GetByEmail(_ context.Context, email string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byEmail[email]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPersonnelRepo) Update(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return domain.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	m.byID[p.ID] = p
	m.byEmail[p.Email] = p
	return nil
}

func (m *memPersonnelRepo) ListActiveWithSecretCode(_ context.Context) ([]*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Person
	for _, id := range m.order {
		p := m.byID[id]
		if p.IsActive && p.SecretCodeHash != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPersonnelRepo) List(_ context.Context, limit, offset int) ([]*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Person
	for i, id := range m.order {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memPersonnelRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsActive = false
	return nil
}

type memVisitorRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Visitor
	byDigest map[string]*domain.Visitor
	byPhone  map[string]*domain.Visitor
}

func newMemVisitorRepo() *memVisitorRepo {
	return &memVisitorRepo{
		byID:     map[string]*domain.Visitor{},
		byDigest: map[string]*domain.Visitor{},
		byPhone:  map[string]*domain.Visitor{},
	}
}

func (m *memVisitorRepo) Create(_ context.Context, v *domain.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byDigest[v.NationalIDDigest]; exists {
		return domain.ErrDuplicate
	}
	if _, exists := m.byPhone[v.PhoneNumber]; exists {
		return domain.ErrDuplicate
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	m.byID[v.ID] = v
	m.byDigest[v.NationalIDDigest] = v
	m.byPhone[v.PhoneNumber] = v
	return nil
}

func (m *memVisitorRepo) GetByID(_ context.Context, id string) (*domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.byID[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memVisitorRepo) GetByNationalIDDigest(_ context.Context, digest string) (*domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.byDigest[digest]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memVisitorRepo) ListWithPhoto(_ context.Context) ([]*domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Visitor
	for _, v := range m.byID {
		if v.HasPhoto() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memVisitorRepo) List(_ context.Context, limit, offset int) ([]*domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.Visitor
	for _, v := range m.byID {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	var out []*domain.Visitor
	for i, v := range all {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

type memVisitRepo struct {
	mu        sync.Mutex
	visits    map[string]*domain.Visit
	visitors  *memVisitorRepo
	latestErr error // injected storage failure for Latest
}

func newMemVisitRepo(visitors *memVisitorRepo) *memVisitRepo {
	return &memVisitRepo{visits: map[string]*domain.Visit{}, visitors: visitors}
}

func (m *memVisitRepo) CreateOpen(ctx context.Context, visit *domain.Visit) error {
	visitor, err := m.visitors.GetByID(ctx, visit.VisitorID)
	if err != nil {
		return err
	}
	if visitor.IsBanned {
		return domain.ErrBanned
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.visits {
		if existing.VisitorID == visit.VisitorID && existing.Open() {
			return domain.ErrAlreadyPresent
		}
	}
	m.visits[visit.ID] = visit
	return nil
}

func (m *memVisitRepo) GetByID(_ context.Context, id string) (*domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.visits[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memVisitRepo) Close(_ context.Context, visitID, officerID string, leaveTime time.Time) (*domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	visit, ok := m.visits[visitID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !visit.Open() {
		return nil, domain.ErrAlreadyLeft
	}
	visit.Status = domain.VisitStatusLeave
	visit.LeaveTime = &leaveTime
	visit.LeftApprovedByID = &officerID
	return visit, nil
}

func (m *memVisitRepo) Latest(_ context.Context, visitorID string) (*domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	var latest *domain.Visit
	for _, v := range m.visits {
		if v.VisitorID != visitorID {
			continue
		}
		if latest == nil || v.VisitTime.After(latest.VisitTime) {
			latest = v
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (m *memVisitRepo) ListForVisitor(_ context.Context, visitorID string, limit, offset int) ([]*domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Visit
	for _, v := range m.visits {
		if v.VisitorID == visitorID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitTime.After(out[j].VisitTime) })
	return page(out, limit, offset), nil
}

func (m *memVisitRepo) ListApprovedBy(_ context.Context, officerID string, limit, offset int) ([]*domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Visit
	for _, v := range m.visits {
		if v.ApprovedByID == officerID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitTime.After(out[j].VisitTime) })
	return page(out, limit, offset), nil
}

func (m *memVisitRepo) CountOpen(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, v := range m.visits {
		if v.Open() {
			count++
		}
	}
	return count, nil
}

type memBanRepo struct {
	mu       sync.Mutex
	bans     map[string]*domain.Ban
	visitors *memVisitorRepo
}

func newMemBanRepo(visitors *memVisitorRepo) *memBanRepo {
	return &memBanRepo{bans: map[string]*domain.Ban{}, visitors: visitors}
}

func (m *memBanRepo) Issue(ctx context.Context, ban *domain.Ban) error {
	visitor, err := m.visitors.GetByID(ctx, ban.VisitorID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bans {
		if existing.VisitorID == ban.VisitorID && existing.Active() {
			return domain.ErrAlreadyBanned
		}
	}
	m.bans[ban.ID] = ban
	visitor.IsBanned = true
	return nil
}

func (m *memBanRepo) Lift(ctx context.Context, visitorID, officerID string, at time.Time) (*domain.Ban, error) {
	visitor, err := m.visitors.GetByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ban := range m.bans {
		if ban.VisitorID == visitorID && ban.Active() {
			ban.LiftedAt = &at
			ban.LiftedByID = &officerID
			visitor.IsBanned = false
			return ban, nil
		}
	}
	return nil, domain.ErrNoActiveBan
}

func (m *memBanRepo) GetActive(_ context.Context, visitorID string) (*domain.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ban := range m.bans {
		if ban.VisitorID == visitorID && ban.Active() {
			return ban, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memBanRepo) ListForVisitor(_ context.Context, visitorID string, limit, offset int) ([]*domain.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Ban
	for _, ban := range m.bans {
		if ban.VisitorID == visitorID {
			out = append(out, ban)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return page(out, limit, offset), nil
}

func (m *memBanRepo) ListIssuedBy(_ context.Context, officerID string, limit, offset int) ([]*domain.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Ban
	for _, ban := range m.bans {
		if ban.IssuedByID == officerID {
			out = append(out, ban)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return page(out, limit, offset), nil
}

type memIncidentRepo struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
}

func newMemIncidentRepo() *memIncidentRepo {
	return &memIncidentRepo{incidents: map[string]*domain.Incident{}}
}

func (m *memIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[incident.ID] = incident
	return nil
}

func (m *memIncidentRepo) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc, ok := m.incidents[id]; ok {
		return inc, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memIncidentRepo) ListForVisitor(_ context.Context, visitorID string, limit, offset int) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Incident
	for _, inc := range m.incidents {
		if inc.VisitorID == visitorID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return page(out, limit, offset), nil
}

func (m *memIncidentRepo) ListForVisit(_ context.Context, visitID string) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Incident
	for _, inc := range m.incidents {
		if inc.VisitID == visitID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (m *memIncidentRepo) ListRecordedBy(_ context.Context, officerID string, limit, offset int) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Incident
	for _, inc := range m.incidents {
		if inc.RecordedByID == officerID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// fakeMatcher resolves probes by exact byte equality against stored photos.
type fakeMatcher struct {
	err      error
	distance float64
}

func (f *fakeMatcher) FindBestMatch(_ context.Context, probe []byte, candidates []*domain.Visitor) (*biometric.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range candidates {
		if string(c.Photo) == string(probe) {
			return &biometric.Match{Visitor: c, Distance: f.distance}, nil
		}
	}
	return nil, domain.ErrNoMatch
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *capturePublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
