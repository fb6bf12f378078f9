package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/gatehouse/internal/domain"
)

// PostgresIncidentRepository implements domain.IncidentRepository using
// PostgreSQL. Incidents are append-only.
type PostgresIncidentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresIncidentRepository creates a new incident repository.
func NewPostgresIncidentRepository(db *sql.DB, logger *slog.Logger) *PostgresIncidentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresIncidentRepository{
		db:     db,
		logger: logger,
	}
}

const incidentColumns = `id, visitor_id, visit_id, description, recorded_by, recorded_at`

// Create appends an incident.
func (r *PostgresIncidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO incidents (id, visitor_id, visit_id, description, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		incident.ID,
		incident.VisitorID,
		incident.VisitID,
		incident.Description,
		incident.RecordedByID,
		incident.RecordedAt,
	)
	if err != nil {
		r.logger.Error("failed to create incident",
			slog.String("visitor_id", incident.VisitorID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID retrieves an incident by UUID.
func (r *PostgresIncidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	return scanIncident(r.db.QueryRowContext(ctx, query, id))
}

// ListForVisitor returns a visitor's incidents, newest first.
func (r *PostgresIncidentRepository) ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE visitor_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, visitorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

// ListForVisit returns the incidents attached to one visit, oldest first.
func (r *PostgresIncidentRepository) ListForVisit(ctx context.Context, visitID string) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE visit_id = $1 ORDER BY recorded_at`

	rows, err := r.db.QueryContext(ctx, query, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

// ListRecordedBy returns incidents an officer recorded, newest first.
func (r *PostgresIncidentRepository) ListRecordedBy(ctx context.Context, officerID string, limit, offset int) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE recorded_by = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, officerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

func scanIncident(row *sql.Row) (*domain.Incident, error) {
	incident := &domain.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.VisitorID,
		&incident.VisitID,
		&incident.Description,
		&incident.RecordedByID,
		&incident.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

func scanIncidents(rows *sql.Rows) ([]*domain.Incident, error) {
	var incidents []*domain.Incident
	for rows.Next() {
		incident := &domain.Incident{}
		err := rows.Scan(
			&incident.ID,
			&incident.VisitorID,
			&incident.VisitID,
			&incident.Description,
			&incident.RecordedByID,
			&incident.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}
