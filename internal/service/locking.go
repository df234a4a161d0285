package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/repository"
)

// LockCoordinator serializes work on a set of accounts by row-locking their
// balance rows in one global order.
type LockCoordinator struct {
	store   QueryStore
	catalog *domain.Catalog
}

func NewLockCoordinator(store QueryStore, catalog *domain.Catalog) *LockCoordinator {
	return &LockCoordinator{store: store, catalog: catalog}
}

// WithLockedAccounts locks accounts and runs fn in the same transaction. A
// transaction already carried by ctx is reused and left for its owner to finish.
func (c *LockCoordinator) WithLockedAccounts(ctx context.Context, accounts []domain.Account, fn func(ctx context.Context, q repository.Querier) error) error {
	ordered, err := c.order(accounts)
	if err != nil {
		return err
	}

	return c.store.RunInTx(ctx, func(ctx context.Context, q repository.Querier) error {
		start := time.Now()
		for _, a := range ordered {
			// Materialize first so concurrent first writers serialize on the row.
			if err := q.EnsureAccountBalance(ctx, a); err != nil {
				return fmt.Errorf("lock %s: %w", a, err)
			}
			if _, err := q.LockAccountBalance(ctx, a); err != nil {
				return fmt.Errorf("lock %s: %w", a, err)
			}
		}
		observability.ObserveLockWait(time.Since(start))
		return fn(ctx, q)
	})
}

// order dedupes accounts and sorts them by (type, scope).
func (c *LockCoordinator) order(accounts []domain.Account) ([]domain.Account, error) {
	seen := make(map[string]struct{}, len(accounts))
	ordered := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if err := c.catalog.CheckAccount(a); err != nil {
			return nil, err
		}
		if _, dup := seen[a.Key()]; dup {
			continue
		}
		seen[a.Key()] = struct{}{}
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key() < ordered[j].Key() })
	return ordered, nil
}
