package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToParseDBConfig     = errors.New("failed to parse database config")
	ErrFailedToOpenDBConnection  = errors.New("failed to open database connection")
	ErrFailedToApplyMigrations   = errors.New("failed to apply migrations")
	ErrEmptyConnectionString     = errors.New("empty database connection string")
	ErrHealthcheckFailed         = errors.New("database healthcheck failed")
	ErrFailedToCloseDBConnection = errors.New("failed to close database connection")
)

// Postgres error codes relevant to constraint handling.
const (
	pgErrCodeUniqueViolation     = "23505"
	pgErrCodeForeignKeyViolation = "23503"
)

// IsNotFoundError reports whether err indicates an empty query result.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeUniqueViolation
	}
	return false
}

// IsForeignKeyViolationError reports whether err is a foreign key constraint violation.
func IsForeignKeyViolationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeForeignKeyViolation
	}
	return false
}
