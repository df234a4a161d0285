package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// Store provides access to queries and transaction scoping. The open
// transaction travels in the context so nested RunInTx calls join it.
type Store struct {
	db          *pgxpool.Pool
	queries     *Queries
	lockTimeout time.Duration
}

// NewStore creates a store wrapper around a pgx connection pool.
// lockTimeout bounds how long a transaction waits for a row lock; zero waits forever.
func NewStore(db *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{
		db:          db,
		queries:     New(db),
		lockTimeout: lockTimeout,
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() Querier {
	return s.queries
}

// InTx reports whether ctx carries an open transaction of this store.
func (s *Store) InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// RunInTx executes fn within a database transaction. When ctx already carries
// one, fn runs inline and the outermost caller owns commit and rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx, s.queries.WithTx(tx))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapErr("set lock timeout", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx), s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapErr("commit transaction", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
