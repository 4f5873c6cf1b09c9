package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"
)

// Error implements repositories.RepositoryError for SQL backed repositories.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a uniqueness or concurrent update conflict.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NotFound builds a not-found error for op.
func NotFound(op string) error {
	return &Error{op: op, err: gorm.ErrRecordNotFound, notFound: true}
}

// Conflict builds a conflict error for op.
func Conflict(op string, reason string) error {
	return &Error{op: op, err: errors.New(reason), conflict: true}
}

// WrapError annotates driver and gorm errors with repository semantics. Context cancellations are passed through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}

	e := &Error{op: op, err: err}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		e.notFound = true
	case errors.Is(err, gorm.ErrDuplicatedKey), IsDuplicateKey(err):
		e.conflict = true
	case isRetryable(err):
		e.conflict = true
	case isConnectionFailure(err):
		e.unavailable = true
	}
	return e
}

// IsDuplicateKey reports whether err is a unique constraint violation on any supported dialect.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "database is locked")
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
