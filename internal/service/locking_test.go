package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockedAccountsLocksInCanonicalOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := domain.Account{Type: domain.AccountTypeUserAccount, Scope: "a"}
	b := domain.Account{Type: domain.AccountTypeUserAccount, Scope: "b"}
	cash := domain.Account{Type: domain.AccountTypeUserCash, Scope: "a"}

	env.mem.ResetLockLog()
	err := env.locks.WithLockedAccounts(ctx, []domain.Account{cash, b, a, b}, func(context.Context, repository.Querier) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Account{a, b, cash}, env.mem.LockLog())
}

func TestWithLockedAccountsMaterializesRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := domain.UserAccount(uuid.New())

	require.NoError(t, env.locks.WithLockedAccounts(ctx, []domain.Account{acct}, func(context.Context, repository.Querier) error {
		return nil
	}))
	assert.Equal(t, int64(0), env.balance(t, acct))
}

func TestWithLockedAccountsRejectsUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	called := false
	err := env.locks.WithLockedAccounts(context.Background(), []domain.Account{{Type: "vault"}}, func(context.Context, repository.Querier) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)
	assert.False(t, called)
}

func TestWithLockedAccountsNestedCallsShareOneTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, 0)
	cash, spending := domain.UserCashAccount(alice), domain.UserAccount(alice)
	seqBefore := env.lastSeq(t)

	err := env.locks.WithLockedAccounts(ctx, []domain.Account{spending}, func(ctx context.Context, _ repository.Querier) error {
		assert.True(t, env.store.InTx(ctx))
		err := env.locks.WithLockedAccounts(ctx, []domain.Account{cash, spending}, func(ctx context.Context, _ repository.Querier) error {
			_, _, err := env.ledger.Transfer(ctx, TransferRequest{Amount: 25, Code: domain.TransferDeposit, From: cash, To: spending})
			return err
		})
		require.NoError(t, err)
		return errors.New("outer body failed")
	})
	require.Error(t, err)

	assert.Equal(t, seqBefore, env.lastSeq(t), "inner transfer must not survive the outer rollback")
}

func TestWithLockedAccountsTimesOutWhileAnotherHolds(t *testing.T) {
	store := repository.NewMemoryStore(20 * time.Millisecond)
	catalog := domain.DefaultCatalog()
	locks := NewLockCoordinator(store, catalog)
	acct := domain.UserAccount(uuid.New())

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = locks.WithLockedAccounts(context.Background(), []domain.Account{acct}, func(context.Context, repository.Querier) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := locks.WithLockedAccounts(context.Background(), []domain.Account{acct}, func(context.Context, repository.Querier) error {
		t.Error("body must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	close(release)
	wg.Wait()
}
