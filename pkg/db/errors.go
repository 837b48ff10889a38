package db

import (
	"errors"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// names are given the violation must reference one of them: postgres compares
// the constraint name, sqlite searches its "table.column" message.
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}
	wanted := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			wanted = append(wanted, name)
		}
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) && pgxErr.Code == uniqueViolationCode {
		return len(wanted) == 0 || slices.Contains(wanted, pgxErr.ConstraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return len(wanted) == 0 || slices.Contains(wanted, pqErr.Constraint)
	}

	msg := err.Error()
	matched := errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !matched {
		return false
	}
	if len(wanted) == 0 {
		return true
	}
	for _, name := range wanted {
		if strings.Contains(msg, name) {
			return true
		}
	}
	return false
}
