// Package repository implements the per-restaurant data access layer. Every
// function runs against a Querier bound to one restaurant's datastore and
// binds every value as a statement parameter.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/store"
	"github.com/go-sql-driver/mysql"
)

// Querier is the subset of a datastore handle the repositories need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// classify maps a driver error onto the error taxonomy. resource names the
// record for NotFound. No retries happen here; callers decide.
func classify(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource)
	}

	if n, ok := store.MySQLErrorNumber(err); ok {
		switch n {
		case store.MySQLErrDupEntry:
			return apperrors.ConstraintViolation(resource+" already exists", err).WithDetail("operation", op)
		case store.MySQLErrRowIsReferenced:
			return apperrors.ConstraintViolation(resource+" is still referenced", err).WithDetail("operation", op)
		case store.MySQLErrNoReferencedRow:
			return apperrors.ConstraintViolation("referenced record does not exist", err).WithDetail("operation", op)
		case store.MySQLErrBadNull:
			return apperrors.ConstraintViolation("required field is missing", err).WithDetail("operation", op)
		}
		return apperrors.TransientIO(op, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return apperrors.TransientIO(op, err).WithDetail("retryable", true)
	}

	return apperrors.TransientIO(op, err)
}

// expectAffected returns NotFound when a write touched no rows.
func expectAffected(op, resource string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, resource, err)
	}
	if n == 0 {
		return apperrors.NotFound(resource)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
