package service

import (
	"context"
	"testing"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newUser(t, 1000)
	bob := env.newUser(t, 0)
	_, _, err := env.ledger.Transfer(ctx, TransferRequest{
		Amount: 250,
		Code:   domain.TransferUserTransfer,
		From:   domain.UserAccount(alice),
		To:     domain.UserAccount(bob),
	})
	require.NoError(t, err)
	h := env.openHold(t, alice, 100)
	_, err = env.holds.Capture(ctx, h.ID)
	require.NoError(t, err)

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	assert.Zero(t, report.LedgerNet)
	assert.Empty(t, report.Mismatches)
	assert.Equal(t, env.lastSeq(t), report.LastLineSeq)

	// A lone line breaks both the zero-sum and the cached balance.
	require.NoError(t, env.store.Queries().InsertLine(ctx, &domain.Line{
		ID:            uuid.New(),
		Account:       domain.UserAccount(alice),
		Code:          domain.TransferUserTransfer,
		Amount:        5,
		Balance:       655,
		Partner:       domain.UserAccount(bob),
		PartnerLineID: uuid.New(),
	}))

	report, err = env.recon.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, int64(5), report.LedgerNet)
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Equal(t, domain.UserAccount(alice), m.Account)
	assert.Equal(t, int64(650), m.Balance)
	assert.Equal(t, int64(655), m.LinesSum)
	assert.Equal(t, int64(655), m.LatestSnapshot)
}
