package service

import (
	"context"
	"testing"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := uuid.New()

	first, err := env.accounts.EnsureUser(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, first.CreditLimit)

	_, err = env.accounts.SetCreditLimit(ctx, id, ptr(int64(75)))
	require.NoError(t, err)

	again, err := env.accounts.EnsureUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, again.CreditLimit)
	assert.Equal(t, int64(75), *again.CreditLimit)
}

func TestSetCreditLimitRejectsNegative(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser(t, 0)

	_, err := env.accounts.SetCreditLimit(context.Background(), user, ptr(int64(-1)))
	v := requireValidation(t, err)
	assert.True(t, v.Has("credit_limit", domain.CodeGreaterThan))
}

func TestDepositAndWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 0)

	dep, err := env.accounts.Deposit(ctx, user, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCashAccount(user), dep.Debit.Account)
	assert.Equal(t, domain.UserAccount(user), dep.Credit.Account)
	assert.Equal(t, domain.TransferDeposit, dep.Credit.Code)
	assert.Equal(t, int64(100), env.balance(t, domain.UserAccount(user)))

	w, err := env.accounts.Withdraw(ctx, user, 40, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferWithdraw, w.Debit.Code)
	assert.Equal(t, int64(60), w.Debit.Balance)
	assert.Equal(t, int64(60), env.balance(t, domain.UserAccount(user)))
	assert.Equal(t, int64(-60), env.balance(t, domain.UserCashAccount(user)))
}

func TestWithdrawNeedsFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty := env.newUser(t, 0)
	_, err := env.accounts.Withdraw(ctx, empty, 10, nil)
	v := requireValidation(t, err)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "user", v.Errors[0].Field)
	assert.Equal(t, domain.CodeAccountNoMoney, v.Errors[0].Code)
	assert.Equal(t, map[string]any{"account_balance": int64(0)}, v.Errors[0].Params)

	funded := env.newUser(t, 100)
	seq := env.lastSeq(t)
	_, err = env.accounts.Withdraw(ctx, funded, 150, nil)
	v = requireValidation(t, err)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "amount", v.Errors[0].Field)
	assert.Equal(t, domain.CodeBiggerThanAccountBalance, v.Errors[0].Code)
	assert.Equal(t, map[string]any{"account_balance": int64(100)}, v.Errors[0].Params)
	assert.Equal(t, seq, env.lastSeq(t))

	_, err = env.accounts.Withdraw(ctx, funded, 100, nil)
	require.NoError(t, err)
	assert.Zero(t, env.balance(t, domain.UserAccount(funded)))
}

func TestMovementsValidateInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.Deposit(ctx, uuid.Nil, 0, nil)
	v := requireValidation(t, err)
	assert.True(t, v.Has("user", domain.CodeRequired))
	assert.True(t, v.Has("amount", domain.CodeGreaterThan))

	_, err = env.accounts.Deposit(ctx, uuid.New(), 10, nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStatementPagesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 0)
	for _, amount := range []int64{10, 20, 30} {
		_, err := env.accounts.Deposit(ctx, user, amount, nil)
		require.NoError(t, err)
	}

	page1, err := env.accounts.Statement(ctx, user, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(30), page1[0].Amount)
	assert.Equal(t, int64(20), page1[1].Amount)

	page2, err := env.accounts.Statement(ctx, user, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, int64(10), page2[0].Amount)
	assert.Equal(t, int64(10), page2[0].Balance)
}
