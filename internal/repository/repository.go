// Package repository provides PostgreSQL access for the booking core.
//
// All repositories share one pgxpool. Mutations on the booking path run
// under explicit transactions; the seat state machine is enforced with
// conditional UPDATEs checked by rows-affected, never by read-then-write.
package repository

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// ─── Storage errors ─────────────────────────────────────────

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")

	// ErrSeatConflict is returned when a seat targeted for booking is no
	// longer AVAILABLE. The enclosing transaction must be rolled back.
	ErrSeatConflict = errors.New("seat no longer available")

	// ErrStoreUnavailable is returned when the store cannot be reached
	// or the operation timed out before completing.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// classifyStoreErr maps low-level connectivity failures to
// ErrStoreUnavailable so callers can degrade without string matching.
// Timeouts and network errors both count: a refused or dropped
// connection surfaces through pgx as a net.Error in the chain.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || errors.As(err, &netErr) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}
