// internal/review/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	apperrors "poultry-review/internal/common/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. Engine operations pass a
// transaction; the sweeper and read paths pass the pool directly.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// wrapDBError maps driver-level failures onto the workflow error taxonomy.
// Callers cannot act on raw driver errors, so storage failures surface as
// transient and retryable.
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewTransientError(err)
}

// isSerializationFailure detects a Postgres serialization conflict (SQLSTATE
// 40001) or unique violation (23505), the two signals of a lost race.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "23505"
	}
	return false
}
