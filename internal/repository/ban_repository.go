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

// PostgresBanRepository implements domain.BanRepository using PostgreSQL.
// Issue and Lift move the ban row and the visitor's derived is_banned flag
// in one transaction so the two can never disagree.
type PostgresBanRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBanRepository creates a new ban repository.
func NewPostgresBanRepository(db *sql.DB, logger *slog.Logger) *PostgresBanRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBanRepository{
		db:     db,
		logger: logger,
	}
}

const banColumns = `id, visitor_id, visit_id, reason, issued_by, issued_at, lifted_at, lifted_by`

// Issue creates a ban and sets the visitor's banned flag. A concurrent
// active ban surfaces as domain.ErrAlreadyBanned via the partial unique
// index.
func (r *PostgresBanRepository) Issue(ctx context.Context, ban *domain.Ban) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ban tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT true FROM visitors WHERE id = $1 FOR UPDATE`, ban.VisitorID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock visitor for ban: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bans (id, visitor_id, visit_id, reason, issued_by, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ban.ID,
		ban.VisitorID,
		nullStringPtr(ban.VisitID),
		ban.Reason,
		ban.IssuedByID,
		ban.IssuedAt,
	)
	if err != nil {
		if translated := translateUnique(err); errors.Is(translated, domain.ErrAlreadyBanned) {
			return translated
		}
		r.logger.Error("failed to create ban",
			slog.String("visitor_id", ban.VisitorID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create ban: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE visitors SET is_banned = true, updated_at = now() WHERE id = $1`, ban.VisitorID,
	); err != nil {
		return fmt.Errorf("failed to flag visitor banned: %w", err)
	}

	return tx.Commit()
}

// Lift closes the active ban and clears the visitor's banned flag.
func (r *PostgresBanRepository) Lift(ctx context.Context, visitorID, officerID string, at time.Time) (*domain.Ban, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unban tx: %w", err)
	}
	defer tx.Rollback()

	ban, err := scanBan(tx.QueryRowContext(ctx, `
		UPDATE bans
		SET lifted_at = $2, lifted_by = $3
		WHERE visitor_id = $1 AND lifted_at IS NULL
		RETURNING `+banColumns,
		visitorID, at, officerID,
	))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoActiveBan
		}
		return nil, fmt.Errorf("failed to lift ban: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE visitors SET is_banned = false, updated_at = now() WHERE id = $1`, visitorID,
	); err != nil {
		return nil, fmt.Errorf("failed to clear banned flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unban: %w", err)
	}
	return ban, nil
}

// GetActive returns the visitor's unlifted ban.
func (r *PostgresBanRepository) GetActive(ctx context.Context, visitorID string) (*domain.Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE visitor_id = $1 AND lifted_at IS NULL`
	return scanBan(r.db.QueryRowContext(ctx, query, visitorID))
}

// ListForVisitor returns a visitor's bans, newest first.
func (r *PostgresBanRepository) ListForVisitor(ctx context.Context, visitorID string, limit, offset int) ([]*domain.Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE visitor_id = $1 ORDER BY issued_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, visitorID, limit, offset)
	if err != nil {
		r.logger.Error("failed to list bans",
			slog.String("visitor_id", visitorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

// ListIssuedBy returns bans an officer issued, newest first.
func (r *PostgresBanRepository) ListIssuedBy(ctx context.Context, officerID string, limit, offset int) ([]*domain.Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE issued_by = $1 ORDER BY issued_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, officerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

func scanBan(row *sql.Row) (*domain.Ban, error) {
	ban := &domain.Ban{}
	var visitID, liftedBy sql.NullString
	var liftedAt sql.NullTime

	err := row.Scan(
		&ban.ID,
		&ban.VisitorID,
		&visitID,
		&ban.Reason,
		&ban.IssuedByID,
		&ban.IssuedAt,
		&liftedAt,
		&liftedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ban: %w", err)
	}

	if visitID.Valid {
		s := visitID.String
		ban.VisitID = &s
	}
	if liftedAt.Valid {
		t := liftedAt.Time
		ban.LiftedAt = &t
	}
	if liftedBy.Valid {
		s := liftedBy.String
		ban.LiftedByID = &s
	}
	return ban, nil
}

func scanBans(rows *sql.Rows) ([]*domain.Ban, error) {
	var bans []*domain.Ban
	for rows.Next() {
		ban := &domain.Ban{}
		var visitID, liftedBy sql.NullString
		var liftedAt sql.NullTime
		err := rows.Scan(
			&ban.ID,
			&ban.VisitorID,
			&visitID,
			&ban.Reason,
			&ban.IssuedByID,
			&ban.IssuedAt,
			&liftedAt,
			&liftedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		if visitID.Valid {
			s := visitID.String
			ban.VisitID = &s
		}
		if liftedAt.Valid {
			t := liftedAt.Time
			ban.LiftedAt = &t
		}
		if liftedBy.Valid {
			s := liftedBy.String
			ban.LiftedByID = &s
		}
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}

func nullStringPtr(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
