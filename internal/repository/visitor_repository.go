package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/gatehouse/internal/domain"
)

// PostgresVisitorRepository implements domain.VisitorRepository using
// PostgreSQL.
type PostgresVisitorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresVisitorRepository creates a new visitor repository.
func NewPostgresVisitorRepository(db *sql.DB, logger *slog.Logger) *PostgresVisitorRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresVisitorRepository{
		db:     db,
		logger: logger,
	}
}

const visitorColumns = `id, first_name, last_name, phone_number, national_id_encrypted, national_id_digest, photo, is_banned, created_at, updated_at`

// Create inserts a new visitor. Unique violations on phone number or
// national ID digest come back as domain.ErrDuplicate.
func (r *PostgresVisitorRepository) Create(ctx context.Context, visitor *domain.Visitor) error {
	query := `
		INSERT INTO visitors (id, first_name, last_name, phone_number, national_id_encrypted, national_id_digest, photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_banned, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		visitor.ID,
		visitor.FirstName,
		visitor.LastName,
		visitor.PhoneNumber,
		visitor.NationalIDEncrypted,
		visitor.NationalIDDigest,
		nullBytes(visitor.Photo),
	).Scan(&visitor.IsBanned, &visitor.CreatedAt, &visitor.UpdatedAt)

	if err != nil {
		if translated := translateUnique(err); errors.Is(translated, domain.ErrDuplicate) {
			return translated
		}
		r.logger.Error("failed to create visitor",
			slog.String("visitor_id", visitor.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create visitor: %w", err)
	}

	return nil
}

// GetByID retrieves a visitor by UUID.
func (r *PostgresVisitorRepository) GetByID(ctx context.Context, id string) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByNationalIDDigest retrieves a visitor by the keyed national-ID digest.
func (r *PostgresVisitorRepository) GetByNationalIDDigest(ctx context.Context, digest string) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE national_id_digest = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, digest))
}

// ListWithPhoto returns all visitors holding a reference image, ordered by
// ID so face matching has a stable candidate order.
func (r *PostgresVisitorRepository) ListWithPhoto(ctx context.Context) ([]*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE photo IS NOT NULL ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list visitors with photo", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// List returns visitors ordered by creation time descending.
func (r *PostgresVisitorRepository) List(ctx context.Context, limit, offset int) ([]*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM visitors ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("failed to list visitors", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *PostgresVisitorRepository) scanOne(row *sql.Row) (*domain.Visitor, error) {
	visitor := &domain.Visitor{}
	var photo []byte

	err := row.Scan(
		&visitor.ID,
		&visitor.FirstName,
		&visitor.LastName,
		&visitor.PhoneNumber,
		&visitor.NationalIDEncrypted,
		&visitor.NationalIDDigest,
		&photo,
		&visitor.IsBanned,
		&visitor.CreatedAt,
		&visitor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}

	visitor.Photo = photo
	return visitor, nil
}

func (r *PostgresVisitorRepository) scanAll(rows *sql.Rows) ([]*domain.Visitor, error) {
	var visitors []*domain.Visitor
	for rows.Next() {
		visitor := &domain.Visitor{}
		var photo []byte
		err := rows.Scan(
			&visitor.ID,
			&visitor.FirstName,
			&visitor.LastName,
			&visitor.PhoneNumber,
			&visitor.NationalIDEncrypted,
			&visitor.NationalIDDigest,
			&photo,
			&visitor.IsBanned,
			&visitor.CreatedAt,
			&visitor.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitor.Photo = photo
		visitors = append(visitors, visitor)
	}
	return visitors, rows.Err()
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
