package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireValidation(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrValidation)
	v, ok := domain.AsValidation(err)
	require.True(t, ok)
	return v
}

func TestUpsertCreatesHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	merchant := domain.UserAccount(uuid.New())
	id := uuid.New()

	h, err := env.holds.Upsert(ctx, UpsertHoldCmd{
		ID:             id,
		UserID:         &user,
		Amount:         ptr(int64(400)),
		TransferCode:   ptr(domain.TransferUserTransfer),
		PartnerAccount: &merchant,
		Detail:         &domain.DetailRef{Kind: "order", ID: "o-1"},
		Metadata:       json.RawMessage(`{"k":"v"}`),
	})
	require.NoError(t, err)
	assert.False(t, h.IsNew())

	stored, err := env.holds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, stored.UserID)
	assert.Equal(t, int64(400), stored.Amount)
	assert.Equal(t, domain.TransferUserTransfer, stored.TransferCode)
	assert.Equal(t, merchant, stored.PartnerAccount)
	assert.Equal(t, &domain.DetailRef{Kind: "order", ID: "o-1"}, stored.Detail)
	assert.JSONEq(t, `{"k":"v"}`, string(stored.Metadata))
	assert.Equal(t, domain.HoldStateHolding, stored.State)
	assert.Nil(t, stored.CaptureLineID)
}

func TestUpsertPartialUpdateKeepsOtherFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	h := env.openHold(t, user, 100)

	updated, err := env.holds.Upsert(ctx, UpsertHoldCmd{ID: h.ID, Amount: ptr(int64(150))})
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.Amount)
	assert.Equal(t, user, updated.UserID)
	assert.Equal(t, h.PartnerAccount, updated.PartnerAccount)
	assert.Equal(t, h.TransferCode, updated.TransferCode)

	open, err := env.credit.OpenHoldAmount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(150), open)
}

func TestUpsertNullMetadataKeepsStoredMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	h := env.openHold(t, user, 100)

	_, err := env.holds.Upsert(ctx, UpsertHoldCmd{ID: h.ID, Metadata: json.RawMessage(`{"order":"o-9"}`)})
	require.NoError(t, err)

	updated, err := env.holds.Upsert(ctx, UpsertHoldCmd{ID: h.ID, Amount: ptr(int64(120)), Metadata: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Equal(t, int64(120), updated.Amount)
	assert.JSONEq(t, `{"order":"o-9"}`, string(updated.Metadata))
}

func TestPutReportsWhetherHoldWasCreated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	partner := domain.UserAccount(uuid.New())
	cmd := UpsertHoldCmd{
		ID:             uuid.New(),
		UserID:         &user,
		Amount:         ptr(int64(100)),
		TransferCode:   ptr(domain.TransferUserTransfer),
		PartnerAccount: &partner,
	}

	_, created, err := env.holds.Put(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, created)

	h, created, err := env.holds.Put(ctx, UpsertHoldCmd{ID: cmd.ID, Amount: ptr(int64(90))})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(90), h.Amount)
}

func TestPutConcurrentCreateReportsOneInsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	partner := domain.UserAccount(uuid.New())
	id := uuid.New()

	const workers = 6
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := env.holds.Put(ctx, UpsertHoldCmd{
				ID:             id,
				UserID:         &user,
				Amount:         ptr(int64(100)),
				TransferCode:   ptr(domain.TransferUserTransfer),
				PartnerAccount: &partner,
			})
			assert.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	inserts := 0
	for created := range results {
		if created {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts)
}

func TestUpsertRejectsClosedHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	h := env.openHold(t, user, 100)
	_, err := env.holds.Capture(ctx, h.ID)
	require.NoError(t, err)

	_, err = env.holds.Upsert(ctx, UpsertHoldCmd{ID: h.ID, Amount: ptr(int64(50))})
	v := requireValidation(t, err)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "id", v.Errors[0].Field)
	assert.Equal(t, domain.CodeHoldClosed, v.Errors[0].Code)
	assert.Equal(t, map[string]any{"id": h.ID.String(), "state": domain.HoldStateClosed}, v.Errors[0].Params)

	stored, err := env.holds.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.Amount)
}

func TestUpsertReportsEveryMissingField(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.holds.Upsert(context.Background(), UpsertHoldCmd{ID: uuid.New()})
	v := requireValidation(t, err)

	assert.True(t, v.Has("user", domain.CodeRequired))
	assert.True(t, v.Has("amount", domain.CodeGreaterThan))
	assert.True(t, v.Has("transfer_code", domain.CodeInvalid))
	codes := v.For("transfer_code")[0].Params["available_transfer_codes"]
	assert.ElementsMatch(t, []domain.TransferCode{domain.TransferUserTransfer, domain.TransferWithdraw}, codes)
}

func TestUpsertRejectsNilID(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser(t, 1000)
	_, err := env.holds.Upsert(context.Background(), UpsertHoldCmd{UserID: &user, Amount: ptr(int64(1))})
	v := requireValidation(t, err)
	assert.True(t, v.Has("id", domain.CodeInvalidUUID))
}

func TestUpsertRejectsPartnerOfWrongType(t *testing.T) {
	env := newTestEnv(t)
	user := env.newUser(t, 1000)
	other := domain.UserAccount(uuid.New())

	_, err := env.holds.Upsert(context.Background(), UpsertHoldCmd{
		ID:             uuid.New(),
		UserID:         &user,
		Amount:         ptr(int64(10)),
		TransferCode:   ptr(domain.TransferWithdraw),
		PartnerAccount: &other,
	})
	v := requireValidation(t, err)
	assert.True(t, v.Has("partner_account", domain.CodeInvalid))
}

func TestUpsertUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stranger := uuid.New()
	merchant := domain.UserAccount(uuid.New())
	id := uuid.New()

	_, err := env.holds.Upsert(ctx, UpsertHoldCmd{
		ID:             id,
		UserID:         &stranger,
		Amount:         ptr(int64(10)),
		TransferCode:   ptr(domain.TransferUserTransfer),
		PartnerAccount: &merchant,
	})
	v := requireValidation(t, err)
	assert.True(t, v.Has("user", domain.CodeNotFound))

	_, err = env.holds.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestUpsertEnforcesRemainingCreditLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	_, err := env.accounts.SetCreditLimit(ctx, user, ptr(int64(500)))
	require.NoError(t, err)
	merchant := domain.UserAccount(uuid.New())

	cmd := func(id uuid.UUID, amount int64) UpsertHoldCmd {
		return UpsertHoldCmd{
			ID:             id,
			UserID:         &user,
			Amount:         &amount,
			TransferCode:   ptr(domain.TransferUserTransfer),
			PartnerAccount: &merchant,
		}
	}

	_, err = env.holds.Upsert(ctx, cmd(uuid.New(), 1501))
	v := requireValidation(t, err)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "amount", v.Errors[0].Field)
	assert.Equal(t, domain.CodeRemainingCreditLimitInsufficient, v.Errors[0].Code)
	assert.Equal(t, map[string]any{"limit": int64(1500), "amount": int64(1501)}, v.Errors[0].Params)

	id := uuid.New()
	_, err = env.holds.Upsert(ctx, cmd(id, 1500))
	require.NoError(t, err)

	// The hold's own amount is left out when its amount changes.
	_, err = env.holds.Upsert(ctx, cmd(id, 1400))
	require.NoError(t, err)
	_, err = env.holds.Upsert(ctx, cmd(id, 1600))
	v = requireValidation(t, err)
	assert.Equal(t, map[string]any{"limit": int64(1500), "amount": int64(1600)}, v.Errors[0].Params)

	// Headroom is now 100.
	_, err = env.holds.Upsert(ctx, cmd(uuid.New(), 101))
	v = requireValidation(t, err)
	assert.Equal(t, map[string]any{"limit": int64(100), "amount": int64(101)}, v.Errors[0].Params)
	_, err = env.holds.Upsert(ctx, cmd(uuid.New(), 100))
	require.NoError(t, err)
}

func TestUpsertJoinsCallerTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 1000)
	merchant := domain.UserAccount(uuid.New())
	id := uuid.New()

	err := env.store.RunInTx(ctx, func(ctx context.Context, _ repository.Querier) error {
		_, err := env.holds.Upsert(ctx, UpsertHoldCmd{
			ID:             id,
			UserID:         &user,
			Amount:         ptr(int64(100)),
			TransferCode:   ptr(domain.TransferUserTransfer),
			PartnerAccount: &merchant,
		})
		require.NoError(t, err)
		return errors.New("caller failed")
	})
	require.Error(t, err)

	_, err = env.holds.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestValidateUpsertMatchesUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 100)
	merchant := domain.UserAccount(uuid.New())
	closed := env.openHold(t, user, 10)
	_, err := env.holds.Capture(ctx, closed.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  UpsertHoldCmd
	}{
		{name: "missing fields", cmd: UpsertHoldCmd{ID: uuid.New()}},
		{name: "closed hold", cmd: UpsertHoldCmd{ID: closed.ID, Amount: ptr(int64(5))}},
		{name: "credit exceeded", cmd: UpsertHoldCmd{
			ID:             uuid.New(),
			UserID:         &user,
			Amount:         ptr(int64(500)),
			TransferCode:   ptr(domain.TransferUserTransfer),
			PartnerAccount: &merchant,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dry, err := env.holds.ValidateUpsert(ctx, tt.cmd)
			require.NoError(t, err)
			require.NotEmpty(t, dry.Errors)

			_, err = env.holds.Upsert(ctx, tt.cmd)
			v := requireValidation(t, err)
			assert.Equal(t, v.Errors, dry.Errors)
		})
	}
}

func TestValidateUpsertDoesNotWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.newUser(t, 100)
	merchant := domain.UserAccount(uuid.New())
	id := uuid.New()

	v, err := env.holds.ValidateUpsert(ctx, UpsertHoldCmd{
		ID:             id,
		UserID:         &user,
		Amount:         ptr(int64(50)),
		TransferCode:   ptr(domain.TransferUserTransfer),
		PartnerAccount: &merchant,
	})
	require.NoError(t, err)
	assert.Empty(t, v.Errors)

	_, err = env.holds.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}
