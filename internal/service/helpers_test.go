package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    QueryStore
	mem      *repository.MemoryStore
	catalog  *domain.Catalog
	ledger   *LedgerService
	locks    *LockCoordinator
	credit   *CreditService
	holds    *HoldService
	accounts *AccountService
	recon    *ReconciliationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := repository.NewMemoryStore(time.Second)
	env := newEnvOn(mem)
	env.mem = mem
	return env
}

// newEnvOn wires the services over store with the default catalog and no
// default credit.
func newEnvOn(store QueryStore) *testEnv {
	catalog := domain.DefaultCatalog()
	ledger := NewLedgerService(store, catalog)
	locks := NewLockCoordinator(store, catalog)
	credit := NewCreditService(store, 0)
	return &testEnv{
		store:    store,
		catalog:  catalog,
		ledger:   ledger,
		locks:    locks,
		credit:   credit,
		holds:    NewHoldService(store, catalog, ledger, locks, credit),
		accounts: NewAccountService(store, ledger, locks),
		recon:    NewReconciliationService(store),
	}
}

// newUser registers a user and deposits balance into the spending account.
func (e *testEnv) newUser(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	_, err := e.accounts.EnsureUser(ctx, id)
	require.NoError(t, err)
	if balance > 0 {
		_, err = e.accounts.Deposit(ctx, id, balance, nil)
		require.NoError(t, err)
	}
	return id
}

// openHold creates a holding hold paying a fresh merchant account.
func (e *testEnv) openHold(t *testing.T, userID uuid.UUID, amount int64) *domain.Hold {
	t.Helper()
	merchant := domain.UserAccount(uuid.New())
	h, err := e.holds.Upsert(context.Background(), UpsertHoldCmd{
		ID:             uuid.New(),
		UserID:         &userID,
		Amount:         &amount,
		TransferCode:   ptr(domain.TransferUserTransfer),
		PartnerAccount: &merchant,
	})
	require.NoError(t, err)
	return h
}

func (e *testEnv) balance(t *testing.T, account domain.Account) int64 {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

func (e *testEnv) lastSeq(t *testing.T) int64 {
	t.Helper()
	seq, err := e.store.Queries().GetLastLineSeq(context.Background())
	require.NoError(t, err)
	return seq
}

func ptr[T any](v T) *T {
	return &v
}
