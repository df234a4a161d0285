package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	_, err := env.accounts.SetCreditLimit(ctx, user, ptr(int64(500)))
	require.NoError(t, err)
	env.openHold(t, user, 300)
	released := env.openHold(t, user, 50)
	_, err = env.holds.Release(ctx, released.ID)
	require.NoError(t, err)

	sum, err := env.credit.Summary(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CreditSummary{
		UserID:               user,
		AccountBalance:       1000,
		OpenHoldAmount:       300,
		AvailableBalance:     700,
		CreditLimit:          500,
		RemainingCreditLimit: 1200,
	}, sum)

	available, err := env.credit.AvailableBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(700), available)
	remaining, err := env.credit.RemainingCreditLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), remaining)
}

func TestCreditLimitFallsBackToDefault(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	catalog := domain.DefaultCatalog()
	ledger := NewLedgerService(store, catalog)
	locks := NewLockCoordinator(store, catalog)
	credit := NewCreditService(store, 250)
	accounts := NewAccountService(store, ledger, locks)
	ctx := context.Background()

	user := uuid.New()
	_, err := accounts.EnsureUser(ctx, user)
	require.NoError(t, err)

	limit, err := credit.CreditLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(250), limit)

	_, err = accounts.SetCreditLimit(ctx, user, ptr(int64(40)))
	require.NoError(t, err)
	limit, err = credit.CreditLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(40), limit)

	_, err = accounts.SetCreditLimit(ctx, user, nil)
	require.NoError(t, err)
	limit, err = credit.CreditLimit(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(250), limit)
}

func TestAccountBalanceBeforeFirstUse(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser(t, 0)

	balance, err := env.credit.AccountBalance(context.Background(), user)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCreditQueriesForUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stranger := uuid.New()

	_, err := env.credit.CreditLimit(ctx, stranger)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = env.credit.Summary(ctx, stranger)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
