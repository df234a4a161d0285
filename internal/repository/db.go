package repository

import (
	"context"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Querier is the data access contract shared by the Postgres and in-memory stores.
type Querier interface {
	// Balances and lines.
	EnsureAccountBalance(ctx context.Context, account domain.Account) error
	LockAccountBalance(ctx context.Context, account domain.Account) (int64, error)
	GetAccountBalance(ctx context.Context, account domain.Account) (domain.AccountBalance, error)
	ApplyBalanceDelta(ctx context.Context, account domain.Account, delta int64) (int64, error)
	InsertLine(ctx context.Context, line *domain.Line) error
	ListLines(ctx context.Context, arg ListLinesParams) ([]domain.Line, error)
	GetLine(ctx context.Context, id uuid.UUID) (domain.Line, error)

	// Holds.
	GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	InsertHold(ctx context.Context, hold *domain.Hold) error
	UpdateHold(ctx context.Context, hold *domain.Hold) (int64, error)
	SumHoldingAmount(ctx context.Context, userID, excludeID uuid.UUID) (int64, error)
	ListHoldsByUser(ctx context.Context, userID uuid.UUID, state domain.HoldState) ([]*domain.Hold, error)
	ListHoldsByDetail(ctx context.Context, detail domain.DetailRef) ([]*domain.Hold, error)

	// Users.
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error

	// Reconciliation.
	GetLedgerNet(ctx context.Context) (int64, error)
	ListBalanceMismatches(ctx context.Context) ([]BalanceMismatch, error)
	GetLastLineSeq(ctx context.Context) (int64, error)
	InsertLineCheck(ctx context.Context, arg InsertLineCheckParams) (LineCheck, error)

	// Idempotency.
	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
	ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) error
}

// Queries runs the hand-written statements against a DBTX.
type Queries struct {
	db DBTX
}

// New binds queries to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

var _ Querier = (*Queries)(nil)

type ListLinesParams struct {
	Account domain.Account
	Limit   int32
	Offset  int32
}

// BalanceMismatch is a cached balance that disagrees with its lines.
type BalanceMismatch struct {
	Account        domain.Account
	Balance        int64
	LinesSum       int64
	LatestSnapshot int64
}

type LineCheck struct {
	ID          int64
	LastLineSeq int64
	ErrorsFound bool
	Log         string
	CreatedAt   time.Time
}

type InsertLineCheckParams struct {
	LastLineSeq int64
	ErrorsFound bool
	Log         string
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	InProgress     bool
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}
