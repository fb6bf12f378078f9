package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/gatehouse/internal/domain"
)

// PostgresVisitRepository implements domain.VisitRepository using
// PostgreSQL. Invariant-guarding mutations run as single transactions with
// the partial unique index as the backstop.
type PostgresVisitRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresVisitRepository creates a new visit repository.
func NewPostgresVisitRepository(db *sql.DB, logger *slog.Logger) *PostgresVisitRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresVisitRepository{
		db:     db,
		logger: logger,
	}
}

const visitColumns = `id, visitor_id, reason, status, visit_time, leave_time, approved_by, left_approved_by`

// CreateOpen inserts a new open visit after checking, in the same
// transaction, that the visitor exists and is not banned. The row lock on
// the visitor serializes check-in against a concurrent ban.
func (r *PostgresVisitRepository) CreateOpen(ctx context.Context, visit *domain.Visit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin check-in tx: %w", err)
	}
	defer tx.Rollback()

	var banned bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_banned FROM visitors WHERE id = $1 FOR UPDATE`, visit.VisitorID,
	).Scan(&banned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock visitor for check-in: %w", err)
	}
	if banned {
		return domain.ErrBanned
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visits (id, visitor_id, reason, status, visit_time, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		visit.ID,
		visit.VisitorID,
		visit.Reason,
		string(visit.Status),
		visit.VisitTime,
		visit.ApprovedByID,
	)
	if err != nil {
		if translated := translateUnique(err); errors.Is(translated, domain.ErrAlreadyPresent) {
			return translated
		}
		r.logger.Error("failed to create visit",
			slog.String("visitor_id", visit.VisitorID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create visit: %w", err)
	}

	return tx.Commit()
}

// GetByID retrieves a visit by UUID.
func (r *PostgresVisitRepository) GetByID(ctx context.Context, id string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`
	return scanVisit(r.db.QueryRowContext(ctx, query, id))
}

// Close marks a visit as left. The transition is terminal: a closed visit
// is never reopened and its timestamps never change again.
func (r *PostgresVisitRepository) Close(ctx context.Context, visitID, officerID string, leaveTime time.Time) (*domain.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin check-out tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM visits WHERE id = $1 FOR UPDATE`, visitID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock visit for check-out: %w", err)
	}
	if domain.VisitStatus(status) == domain.VisitStatusLeave {
		return nil, domain.ErrAlreadyLeft
	}

	visit, err := scanVisit(tx.QueryRowContext(ctx, `
		UPDATE visits
		SET status = $2, leave_time = $3, left_approved_by = $4
		WHERE id = $1
		RETURNING `+visitColumns,
		visitID,
		string(domain.VisitStatusLeave),
		leaveTime,
		officerID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to close visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check-out: %w", err)
	}
	return visit, nil
}

// Latest returns the visitor's most recent visit by visit time.
func (r *PostgresVisitRepository) Latest(ctx context.Context, visitorID string) (*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE visitor_id = $1 ORDER BY visit_time DESC LIMIT 1`
	return scanVisit(r.db.QueryRowContext(ctx, query, visitorID))
}

// ListForVisitor returns a visitor's visits, newest first.
func (r *PostgresVisitRepository) ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE visitor_id = $1 ORDER BY visit_time DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, visitorID, limit, offset)
	if err != nil {
		r.logger.Error("failed to list visits",
			slog.String("visitor_id", visitorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// ListApprovedBy returns visits an officer approved, newest first.
func (r *PostgresVisitRepository) ListApprovedBy(ctx context.Context, officerID string, limit, offset int) ([]*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE approved_by = $1 ORDER BY visit_time DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, officerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// CountOpen returns the number of visitors currently on site.
func (r *PostgresVisitRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE status = 'visit'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open visits: %w", err)
	}
	return n, nil
}

func scanVisit(row *sql.Row) (*domain.Visit, error) {
	visit := &domain.Visit{}
	var status string
	var leaveTime sql.NullTime
	var leftApprovedBy sql.NullString

	err := row.Scan(
		&visit.ID,
		&visit.VisitorID,
		&visit.Reason,
		&status,
		&visit.VisitTime,
		&leaveTime,
		&visit.ApprovedByID,
		&leftApprovedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}

	visit.Status = domain.VisitStatus(status)
	if leaveTime.Valid {
		t := leaveTime.Time
		visit.LeaveTime = &t
	}
	if leftApprovedBy.Valid {
		s := leftApprovedBy.String
		visit.LeftApprovedByID = &s
	}
	return visit, nil
}

func scanVisits(rows *sql.Rows) ([]*domain.Visit, error) {
	var visits []*domain.Visit
	for rows.Next() {
		visit := &domain.Visit{}
		var status string
		var leaveTime sql.NullTime
		var leftApprovedBy sql.NullString
		err := rows.Scan(
			&visit.ID,
			&visit.VisitorID,
			&visit.Reason,
			&status,
			&visit.VisitTime,
			&leaveTime,
			&visit.ApprovedByID,
			&leftApprovedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visit.Status = domain.VisitStatus(status)
		if leaveTime.Valid {
			t := leaveTime.Time
			visit.LeaveTime = &t
		}
		if leftApprovedBy.Valid {
			s := leftApprovedBy.String
			visit.LeftApprovedByID = &s
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}
