package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/yourorg/gatehouse/internal/domain"
)

// Postgres unique_violation.
const uniqueViolation = "23505"

// translateUnique maps a unique-constraint violation onto the typed
// conflict for the constraint that fired. This is the race-safety net: even
// if two transactions pass the application-level check concurrently, the
// partial unique indexes let only one commit, and the loser surfaces the
// same conflict the check would have raised.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case "visits_one_open_per_visitor":
		return domain.ErrAlreadyPresent
	case "bans_one_active_per_visitor":
		return domain.ErrAlreadyBanned
	default:
		// Entity uniqueness (phone, national ID digest, email).
		return domain.ErrDuplicate
	}
}
