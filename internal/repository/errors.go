package repository

import (
	"errors"
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// mapErr translates driver errors into repository and domain sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrLockTimeout, pgErr.Message)
		case pgUniqueViolation:
			return domain.StorageError(op, fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName))
		}
	}
	return domain.StorageError(op, err)
}
