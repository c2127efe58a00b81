package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"go-student-records/internal/database"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type DBTX = database.Querier

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// pageBounds normalizes pagination input and returns the limit and offset.
func pageBounds(page int, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit, (page - 1) * limit
}
