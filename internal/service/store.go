package service

import (
	"context"

	"github.com/ayo6706/hold-ledger/internal/repository"
)

// QueryStore defines the minimal data access contract required by services.
// RunInTx joins a transaction already carried by ctx instead of opening a new one.
type QueryStore interface {
	Queries() repository.Querier
	RunInTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error
	InTx(ctx context.Context) bool
}

// read runs fn on the transaction carried by ctx, or on autocommit queries otherwise,
// so reads inside a caller's transaction see its uncommitted writes.
func read(ctx context.Context, store QueryStore, fn func(q repository.Querier) error) error {
	if store.InTx(ctx) {
		return store.RunInTx(ctx, func(_ context.Context, q repository.Querier) error {
			return fn(q)
		})
	}
	return fn(store.Queries())
}
