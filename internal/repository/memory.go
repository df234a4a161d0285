package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Querier backed by maps. Transactions are
// serialized by a single gate and rolled back through an undo journal, so a
// failed RunInTx leaves no trace. It backs STORAGE=memory and the unit tests.
type MemoryStore struct {
	gate        chan struct{}
	lockTimeout time.Duration
	now         func() time.Time

	mu         sync.RWMutex
	balances   map[string]*domain.AccountBalance
	lines      []domain.Line
	holds      map[uuid.UUID]*domain.Hold
	users      map[uuid.UUID]domain.User
	lineChecks []LineCheck
	idem       map[string]IdempotencyKey
	lockLog    []domain.Account
	faults     map[string]error
}

type memTxKey struct{}

type memTx struct {
	undo []func()
}

// NewMemoryStore creates an empty store. lockTimeout bounds how long a
// transaction waits to begin; zero waits until ctx is done.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		gate:        make(chan struct{}, 1),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		balances:    make(map[string]*domain.AccountBalance),
		holds:       make(map[uuid.UUID]*domain.Hold),
		users:       make(map[uuid.UUID]domain.User),
		idem:        make(map[string]IdempotencyKey),
		faults:      make(map[string]error),
	}
}

var _ Querier = (*memQueries)(nil)

// Queries returns an autocommit query set.
func (s *MemoryStore) Queries() Querier {
	return &memQueries{s: s}
}

// InTx reports whether ctx carries an open transaction of this store.
func (s *MemoryStore) InTx(ctx context.Context) bool {
	_, ok := ctx.Value(memTxKey{}).(*memTx)
	return ok
}

// RunInTx executes fn within a transaction. Nested calls run inline.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx, &memQueries{s: s, tx: tx})
	}

	if err := s.begin(ctx); err != nil {
		return err
	}
	tx := &memTx{}
	committed := false
	defer func() {
		if !committed {
			s.rollback(tx)
		}
		<-s.gate
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, tx), &memQueries{s: s, tx: tx}); err != nil {
		return err
	}
	if err := s.takeFault("Commit"); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// FailNext makes the next call of the named operation ("InsertLine",
// "UpdateHold", "Commit", ...) fail with a storage error wrapping err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// LockLog returns the accounts locked so far, in acquisition order.
func (s *MemoryStore) LockLog() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Account(nil), s.lockLog...)
}

// ResetLockLog clears the recorded lock order.
func (s *MemoryStore) ResetLockLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLog = nil
}

func (s *MemoryStore) begin(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("begin transaction: %w", domain.ErrLockTimeout)
	case <-ctx.Done():
		return domain.StorageError("begin transaction", ctx.Err())
	}
}

func (s *MemoryStore) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (s *MemoryStore) takeFault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return domain.StorageError(op, err)
}

type memQueries struct {
	s  *MemoryStore
	tx *memTx
}

// journal records an undo step; callers hold s.mu.
func (q *memQueries) journal(undo func()) {
	if q.tx != nil {
		q.tx.undo = append(q.tx.undo, undo)
	}
}

func (q *memQueries) EnsureAccountBalance(_ context.Context, account domain.Account) error {
	if err := q.s.takeFault("EnsureAccountBalance"); err != nil {
		return err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.ensure(account)
	return nil
}

func (q *memQueries) ensure(account domain.Account) *domain.AccountBalance {
	key := account.Key()
	if b, ok := q.s.balances[key]; ok {
		return b
	}
	b := &domain.AccountBalance{Account: account, UpdatedAt: q.s.now()}
	q.s.balances[key] = b
	q.journal(func() { delete(q.s.balances, key) })
	return b
}

func (q *memQueries) LockAccountBalance(_ context.Context, account domain.Account) (int64, error) {
	if err := q.s.takeFault("LockAccountBalance"); err != nil {
		return 0, err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	b, ok := q.s.balances[account.Key()]
	if !ok {
		return 0, fmt.Errorf("lock account balance: %w", ErrNotFound)
	}
	q.s.lockLog = append(q.s.lockLog, account)
	return b.Balance, nil
}

func (q *memQueries) GetAccountBalance(_ context.Context, account domain.Account) (domain.AccountBalance, error) {
	if err := q.s.takeFault("GetAccountBalance"); err != nil {
		return domain.AccountBalance{}, err
	}
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	b, ok := q.s.balances[account.Key()]
	if !ok {
		return domain.AccountBalance{}, fmt.Errorf("get account balance: %w", ErrNotFound)
	}
	return *b, nil
}

func (q *memQueries) ApplyBalanceDelta(_ context.Context, account domain.Account, delta int64) (int64, error) {
	if err := q.s.takeFault("ApplyBalanceDelta"); err != nil {
		return 0, err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	b := q.ensure(account)
	prev := *b
	b.Balance += delta
	b.UpdatedAt = q.s.now()
	q.journal(func() { *b = prev })
	return b.Balance, nil
}

func (q *memQueries) InsertLine(_ context.Context, line *domain.Line) error {
	if err := q.s.takeFault("InsertLine"); err != nil {
		return err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.lines {
		if existing.ID == line.ID {
			return domain.StorageError("insert line", fmt.Errorf("%w: lines_id_key", ErrDuplicate))
		}
	}
	n := len(q.s.lines)
	line.Seq = int64(n + 1)
	if n > 0 {
		line.Seq = q.s.lines[n-1].Seq + 1
	}
	line.CreatedAt = q.s.now()
	q.s.lines = append(q.s.lines, copyLine(*line))
	q.journal(func() { q.s.lines = q.s.lines[:n] })
	return nil
}

func (q *memQueries) ListLines(_ context.Context, arg ListLinesParams) ([]domain.Line, error) {
	if err := q.s.takeFault("ListLines"); err != nil {
		return nil, err
	}
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	var out []domain.Line
	skipped := int32(0)
	for i := len(q.s.lines) - 1; i >= 0; i-- {
		l := q.s.lines[i]
		if l.Account != arg.Account {
			continue
		}
		if skipped < arg.Offset {
			skipped++
			continue
		}
		if arg.Limit > 0 && int32(len(out)) >= arg.Limit {
			break
		}
		out = append(out, copyLine(l))
	}
	return out, nil
}

func (q *memQueries) GetLine(_ context.Context, id uuid.UUID) (domain.Line, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	for _, l := range q.s.lines {
		if l.ID == id {
			return copyLine(l), nil
		}
	}
	return domain.Line{}, fmt.Errorf("get line: %w", ErrNotFound)
}

func (q *memQueries) GetHold(_ context.Context, id uuid.UUID) (*domain.Hold, error) {
	if err := q.s.takeFault("GetHold"); err != nil {
		return nil, err
	}
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	h, ok := q.s.holds[id]
	if !ok {
		return nil, fmt.Errorf("get hold: %w", ErrNotFound)
	}
	return domain.RestoreHoldFromStorage(*h.Clone()), nil
}

func (q *memQueries) InsertHold(_ context.Context, h *domain.Hold) error {
	if err := q.s.takeFault("InsertHold"); err != nil {
		return err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.holds[h.ID]; ok {
		return domain.StorageError("insert hold", fmt.Errorf("%w: authorization_holds_pkey", ErrDuplicate))
	}
	if err := q.checkHoldRefs(h); err != nil {
		return domain.StorageError("insert hold", err)
	}
	now := q.s.now()
	h.CreatedAt, h.UpdatedAt = now, now
	q.s.holds[h.ID] = h.Clone()
	id := h.ID
	q.journal(func() { delete(q.s.holds, id) })
	return nil
}

func (q *memQueries) UpdateHold(_ context.Context, h *domain.Hold) (int64, error) {
	if err := q.s.takeFault("UpdateHold"); err != nil {
		return 0, err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev, ok := q.s.holds[h.ID]
	if !ok {
		return 0, nil
	}
	if err := q.checkHoldRefs(h); err != nil {
		return 0, domain.StorageError("update hold", err)
	}
	h.CreatedAt = prev.CreatedAt
	h.UpdatedAt = q.s.now()
	q.s.holds[h.ID] = h.Clone()
	q.journal(func() { q.s.holds[prev.ID] = prev })
	return 1, nil
}

// checkHoldRefs mirrors the foreign keys of authorization_holds.
func (q *memQueries) checkHoldRefs(h *domain.Hold) error {
	if _, ok := q.s.users[h.UserID]; !ok {
		return fmt.Errorf("user %s does not exist", h.UserID)
	}
	if h.CaptureLineID == nil {
		return nil
	}
	for _, l := range q.s.lines {
		if l.ID == *h.CaptureLineID {
			return nil
		}
	}
	return fmt.Errorf("line %s does not exist", *h.CaptureLineID)
}

func (q *memQueries) SumHoldingAmount(_ context.Context, userID, excludeID uuid.UUID) (int64, error) {
	if err := q.s.takeFault("SumHoldingAmount"); err != nil {
		return 0, err
	}
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	var total int64
	for _, h := range q.s.holds {
		if h.UserID == userID && h.State == domain.HoldStateHolding && h.ID != excludeID {
			total += h.Amount
		}
	}
	return total, nil
}

func (q *memQueries) ListHoldsByUser(_ context.Context, userID uuid.UUID, state domain.HoldState) ([]*domain.Hold, error) {
	return q.listHolds(func(h *domain.Hold) bool {
		return h.UserID == userID && (state == "" || h.State == state)
	}), nil
}

func (q *memQueries) ListHoldsByDetail(_ context.Context, detail domain.DetailRef) ([]*domain.Hold, error) {
	return q.listHolds(func(h *domain.Hold) bool {
		return h.Detail != nil && *h.Detail == detail
	}), nil
}

func (q *memQueries) listHolds(match func(*domain.Hold) bool) []*domain.Hold {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	var out []*domain.Hold
	for _, h := range q.s.holds {
		if match(h) {
			out = append(out, domain.RestoreHoldFromStorage(*h.Clone()))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (q *memQueries) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	u, ok := q.s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return copyUser(u), nil
}

func (q *memQueries) UpsertUser(_ context.Context, u *domain.User) error {
	if err := q.s.takeFault("UpsertUser"); err != nil {
		return err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev, existed := q.s.users[u.ID]
	if existed {
		u.CreatedAt = prev.CreatedAt
	} else {
		u.CreatedAt = q.s.now()
	}
	q.s.users[u.ID] = copyUser(*u)
	id := u.ID
	q.journal(func() {
		if existed {
			q.s.users[id] = prev
		} else {
			delete(q.s.users, id)
		}
	})
	return nil
}

func (q *memQueries) GetLedgerNet(context.Context) (int64, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	var net int64
	for _, l := range q.s.lines {
		net += l.Amount
	}
	return net, nil
}

func (q *memQueries) ListBalanceMismatches(context.Context) ([]BalanceMismatch, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	sums := make(map[string]int64)
	latest := make(map[string]int64)
	for _, l := range q.s.lines {
		key := l.Account.Key()
		sums[key] += l.Amount
		latest[key] = l.Balance
	}
	var out []BalanceMismatch
	for key, b := range q.s.balances {
		if b.Balance == sums[key] && b.Balance == latest[key] {
			continue
		}
		out = append(out, BalanceMismatch{
			Account:        b.Account,
			Balance:        b.Balance,
			LinesSum:       sums[key],
			LatestSnapshot: latest[key],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account.Type != out[j].Account.Type {
			return out[i].Account.Type < out[j].Account.Type
		}
		return out[i].Account.Scope < out[j].Account.Scope
	})
	return out, nil
}

func (q *memQueries) GetLastLineSeq(context.Context) (int64, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	if n := len(q.s.lines); n > 0 {
		return q.s.lines[n-1].Seq, nil
	}
	return 0, nil
}

func (q *memQueries) InsertLineCheck(_ context.Context, arg InsertLineCheckParams) (LineCheck, error) {
	if err := q.s.takeFault("InsertLineCheck"); err != nil {
		return LineCheck{}, err
	}
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c := LineCheck{
		ID:          int64(len(q.s.lineChecks) + 1),
		LastLineSeq: arg.LastLineSeq,
		ErrorsFound: arg.ErrorsFound,
		Log:         arg.Log,
		CreatedAt:   q.s.now(),
	}
	n := len(q.s.lineChecks)
	q.s.lineChecks = append(q.s.lineChecks, c)
	q.journal(func() { q.s.lineChecks = q.s.lineChecks[:n] })
	return c, nil
}

func (q *memQueries) GetIdempotencyKey(_ context.Context, key string) (IdempotencyKey, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()
	row, ok := q.s.idem[key]
	if !ok {
		return IdempotencyKey{}, fmt.Errorf("get idempotency key: %w", ErrNotFound)
	}
	return row, nil
}

func (q *memQueries) ReserveIdempotencyKey(_ context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.idem[arg.IdempotencyKey]; ok {
		return IdempotencyKey{}, fmt.Errorf("reserve idempotency key: %w", ErrNotFound)
	}
	now := q.s.now()
	row := IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	q.s.idem[arg.IdempotencyKey] = row
	q.journal(func() { delete(q.s.idem, arg.IdempotencyKey) })
	return row, nil
}

func (q *memQueries) FinalizeIdempotencyKey(_ context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	row, ok := q.s.idem[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return IdempotencyKey{}, fmt.Errorf("finalize idempotency key: %w", ErrNotFound)
	}
	prev := row
	row.InProgress = false
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	row.ContentType = arg.ContentType
	row.UpdatedAt = q.s.now()
	q.s.idem[arg.IdempotencyKey] = row
	q.journal(func() { q.s.idem[arg.IdempotencyKey] = prev })
	return row, nil
}

func (q *memQueries) ReleaseIdempotencyKey(_ context.Context, key, requestHash string) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	row, ok := q.s.idem[key]
	if !ok || !row.InProgress || row.RequestHash != requestHash {
		return nil
	}
	delete(q.s.idem, key)
	q.journal(func() { q.s.idem[key] = row })
	return nil
}

func copyLine(l domain.Line) domain.Line {
	if l.Detail != nil {
		d := *l.Detail
		l.Detail = &d
	}
	if l.Metadata != nil {
		l.Metadata = append([]byte(nil), l.Metadata...)
	}
	return l
}

func copyUser(u domain.User) domain.User {
	if u.CreditLimit != nil {
		limit := *u.CreditLimit
		u.CreditLimit = &limit
	}
	return u
}
