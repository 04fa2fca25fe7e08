package postgres

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

func sqlState(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == uniqueViolation
}

func constraint(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// isRetryable reports whether the whole transaction may be replayed.
func isRetryable(err error) bool {
	switch sqlState(err) {
	case serializationFailure, deadlockDetected:
		return true
	}
	return false
}

// getErr maps sql.ErrNoRows onto NotFound and wraps everything else.
func getErr(resource string, err error) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource, nil)
	}
	return fmt.Errorf("failed to get %s: %w", resource, err)
}

// affected turns a zero-row UPDATE into NotFound.
func affected(resource string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound(resource, nil)
	}
	return nil
}
