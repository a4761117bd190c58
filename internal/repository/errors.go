package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("duplicate key")
)

const uniqueViolation = "23505"

// translate maps driver errors onto the package sentinels so callers can use
// errors.Is without importing pgx.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &constraintError{constraint: pgErr.ConstraintName, err: err}
	}
	return err
}

type constraintError struct {
	constraint string
	err        error
}

func (e *constraintError) Error() string {
	if e.constraint == "" {
		return ErrDuplicate.Error()
	}
	return ErrDuplicate.Error() + " (" + e.constraint + ")"
}

func (e *constraintError) Is(target error) bool { return target == ErrDuplicate }

func (e *constraintError) Unwrap() error { return e.err }

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
