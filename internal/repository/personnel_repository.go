package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/gatehouse/internal/domain"
)

// PostgresPersonnelRepository implements domain.PersonnelRepository using
// PostgreSQL.
type PostgresPersonnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPersonnelRepository creates a new personnel repository.
func NewPostgresPersonnelRepository(db *sql.DB, logger *slog.Logger) *PostgresPersonnelRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPersonnelRepository{
		db:     db,
		logger: logger,
	}
}

const personnelColumns = `id, first_name, last_name, email, phone_number, role, national_id_encrypted, password_hash, secret_code_hash, is_active, created_at, updated_at`

// Create inserts a new officer. Email uniqueness violations come back as
// domain.ErrDuplicate.
func (r *PostgresPersonnelRepository) Create(ctx context.Context, person *domain.Person) error {
	query := `
		INSERT INTO personnel (id, first_name, last_name, email, phone_number, role, national_id_encrypted, password_hash, secret_code_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		person.ID,
		person.FirstName,
		person.LastName,
		person.Email,
		person.PhoneNumber,
		string(person.Role),
		person.NationalIDEncrypted,
		person.PasswordHash,
		nullString(person.SecretCodeHash),
		person.IsActive,
	).Scan(&person.CreatedAt, &person.UpdatedAt)

	if err != nil {
		if translated := translateUnique(err); errors.Is(translated, domain.ErrDuplicate) {
			return translated
		}
		r.logger.Error("failed to create officer",
			slog.String("email", person.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create officer: %w", err)
	}

	return nil
}

// GetByID retrieves an officer by UUID.
func (r *PostgresPersonnelRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE id = $1`
	return scanPerson(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an officer by email, active or not; the auth service
// decides what an inactive account means.
func (r *PostgresPersonnelRepository) GetByEmail(ctx context.Context, email string) (*domain.Person, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE email = $1`
	return scanPerson(r.db.QueryRowContext(ctx, query, email))
}

// Update rewrites the officer's mutable fields.
func (r *PostgresPersonnelRepository) Update(ctx context.Context, person *domain.Person) error {
	query := `
		UPDATE personnel
		SET first_name = $1, last_name = $2, phone_number = $3, password_hash = $4, secret_code_hash = $5, is_active = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		person.FirstName,
		person.LastName,
		person.PhoneNumber,
		person.PasswordHash,
		nullString(person.SecretCodeHash),
		person.IsActive,
		person.ID,
	).Scan(&person.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update officer: %w", err)
	}

	return nil
}

// ListActiveWithSecretCode returns the roster the secret-code scan walks,
// ordered by creation time for a deterministic first match.
func (r *PostgresPersonnelRepository) ListActiveWithSecretCode(ctx context.Context) ([]*domain.Person, error) {
	query := `
		SELECT ` + personnelColumns + `
		FROM personnel
		WHERE is_active AND secret_code_hash IS NOT NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list secret-code roster", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list officers: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// List returns officers ordered by creation time descending.
func (r *PostgresPersonnelRepository) List(ctx context.Context, limit, offset int) ([]*domain.Person, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("failed to list officers", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list officers: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// Deactivate soft-deletes an officer.
func (r *PostgresPersonnelRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE personnel SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate officer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func scanPerson(row *sql.Row) (*domain.Person, error) {
	person := &domain.Person{}
	var secretCode sql.NullString
	var role string

	err := row.Scan(
		&person.ID,
		&person.FirstName,
		&person.LastName,
		&person.Email,
		&person.PhoneNumber,
		&role,
		&person.NationalIDEncrypted,
		&person.PasswordHash,
		&secretCode,
		&person.IsActive,
		&person.CreatedAt,
		&person.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get officer: %w", err)
	}

	person.Role = domain.Role(role)
	person.SecretCodeHash = secretCode.String
	return person, nil
}

func scanPersons(rows *sql.Rows) ([]*domain.Person, error) {
	var persons []*domain.Person
	for rows.Next() {
		person := &domain.Person{}
		var secretCode sql.NullString
		var role string
		err := rows.Scan(
			&person.ID,
			&person.FirstName,
			&person.LastName,
			&person.Email,
			&person.PhoneNumber,
			&role,
			&person.NationalIDEncrypted,
			&person.PasswordHash,
			&secretCode,
			&person.IsActive,
			&person.CreatedAt,
			&person.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan officer: %w", err)
		}
		person.Role = domain.Role(role)
		person.SecretCodeHash = secretCode.String
		persons = append(persons, person)
	}
	return persons, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
