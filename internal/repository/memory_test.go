package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRollsBackEveryWriteOnError(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	acct := domain.UserAccount(uuid.New())
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ApplyBalanceDelta(ctx, acct, 500)
		require.NoError(t, err)
		require.NoError(t, q.InsertLine(ctx, &domain.Line{ID: uuid.New(), Account: acct, Amount: 500, Balance: 500}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Queries().GetAccountBalance(ctx, acct)
	assert.ErrorIs(t, err, ErrNotFound)
	seq, err := store.Queries().GetLastLineSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestMemoryStoreNestedTxJoinsOuter(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	acct := domain.UserAccount(uuid.New())

	err := store.RunInTx(ctx, func(ctx context.Context, q Querier) error {
		assert.True(t, store.InTx(ctx))
		require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, q Querier) error {
			_, err := q.ApplyBalanceDelta(ctx, acct, 100)
			return err
		}))
		return errors.New("outer failed")
	})
	require.Error(t, err)

	_, err = store.Queries().GetAccountBalance(ctx, acct)
	assert.ErrorIs(t, err, ErrNotFound, "inner write must roll back with the outer transaction")
}

func TestMemoryStoreFailNextInjectsStorageError(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	store.FailNext("Commit", errors.New("disk full"))

	acct := domain.UserAccount(uuid.New())
	err := store.RunInTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ApplyBalanceDelta(ctx, acct, 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	_, err = store.Queries().GetAccountBalance(ctx, acct)
	assert.ErrorIs(t, err, ErrNotFound)

	// The fault fires once.
	require.NoError(t, store.RunInTx(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.ApplyBalanceDelta(ctx, acct, 1)
		return err
	}))
}

func TestMemoryStoreBeginTimesOut(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.RunInTx(ctx, func(context.Context, Querier) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := store.RunInTx(ctx, func(context.Context, Querier) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	close(release)
	wg.Wait()
}

func TestMemoryStoreHoldRoundTripRecordsBaseline(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	q := store.Queries()

	user := &domain.User{ID: uuid.New()}
	require.NoError(t, q.UpsertUser(ctx, user))

	h := domain.NewHold(uuid.New())
	h.UserID = user.ID
	h.Amount = 700
	h.TransferCode = domain.TransferUserTransfer
	h.PartnerAccount = domain.UserAccount(uuid.New())
	h.Metadata = []byte(`{"order":"A-1"}`)
	require.NoError(t, q.InsertHold(ctx, h))

	// Mutating the caller's copy must not reach the stored row.
	h.Amount = 1

	got, err := q.GetHold(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Amount)
	assert.False(t, got.IsNew())
	assert.Equal(t, int64(700), got.Persisted().Amount)

	total, err := q.SumHoldingAmount(ctx, user.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(700), total)

	total, err = q.SumHoldingAmount(ctx, user.ID, h.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMemoryStoreRejectsHoldForUnknownUser(t *testing.T) {
	store := NewMemoryStore(time.Second)
	h := domain.NewHold(uuid.New())
	h.UserID = uuid.New()
	h.Amount = 1
	err := store.Queries().InsertHold(context.Background(), h)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestMemoryStoreBalanceMismatches(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	q := store.Queries()
	acct := domain.UserAccount(uuid.New())

	_, err := q.ApplyBalanceDelta(ctx, acct, 40)
	require.NoError(t, err)

	mismatches, err := q.ListBalanceMismatches(ctx)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, acct, mismatches[0].Account)
	assert.Equal(t, int64(40), mismatches[0].Balance)
	assert.Zero(t, mismatches[0].LinesSum)
}
