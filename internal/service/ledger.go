package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferRequest describes one movement of money between two accounts.
type TransferRequest struct {
	Amount   int64
	Code     domain.TransferCode
	From     domain.Account
	To       domain.Account
	Detail   *domain.DetailRef
	Metadata json.RawMessage
}

// LedgerService owns balances and lines. It never locks: callers that need
// serialization wrap it in LockCoordinator.WithLockedAccounts.
type LedgerService struct {
	store   QueryStore
	catalog *domain.Catalog
}

func NewLedgerService(store QueryStore, catalog *domain.Catalog) *LedgerService {
	return &LedgerService{store: store, catalog: catalog}
}

// Balance returns the cached balance of a materialized account.
func (s *LedgerService) Balance(ctx context.Context, account domain.Account) (int64, error) {
	if err := s.catalog.CheckAccount(account); err != nil {
		return 0, err
	}
	var balance int64
	err := read(ctx, s.store, func(q repository.Querier) error {
		row, err := q.GetAccountBalance(ctx, account)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s has never been used", domain.ErrUnknownAccount, account)
			}
			return err
		}
		balance = row.Balance
		return nil
	})
	return balance, err
}

// Transfer writes a debit line on From and a credit line on To and applies
// both balance deltas. The four writes share one transaction, joining the
// caller's when ctx carries one.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*domain.Line, *domain.Line, error) {
	if err := s.check(req); err != nil {
		return nil, nil, err
	}

	debit := &domain.Line{
		ID:       uuid.New(),
		Account:  req.From,
		Code:     req.Code,
		Amount:   -req.Amount,
		Partner:  req.To,
		Detail:   req.Detail,
		Metadata: req.Metadata,
	}
	credit := &domain.Line{
		ID:       uuid.New(),
		Account:  req.To,
		Code:     req.Code,
		Amount:   req.Amount,
		Partner:  req.From,
		Detail:   req.Detail,
		Metadata: req.Metadata,
	}
	debit.PartnerLineID = credit.ID
	credit.PartnerLineID = debit.ID

	err := s.store.RunInTx(ctx, func(ctx context.Context, q repository.Querier) error {
		for _, line := range []*domain.Line{debit, credit} {
			balance, err := q.ApplyBalanceDelta(ctx, line.Account, line.Amount)
			if err != nil {
				return fmt.Errorf("apply %s delta: %w", line.Account, err)
			}
			line.Balance = balance
			if err := q.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert %s line: %w", line.Account, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	observability.IncrementTransfer(string(req.Code))
	zap.L().Debug("transfer written",
		zap.String("code", string(req.Code)),
		zap.Int64("amount", req.Amount),
		zap.Stringer("from", req.From),
		zap.Stringer("to", req.To),
	)
	return debit, credit, nil
}

func (s *LedgerService) check(req TransferRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, req.Amount)
	}
	if err := s.catalog.CheckAccount(req.From); err != nil {
		return err
	}
	if err := s.catalog.CheckAccount(req.To); err != nil {
		return err
	}
	if _, err := s.catalog.ResolveTransfer(req.Code, req.From.Type, req.To.Type); err != nil {
		return err
	}
	if req.From == req.To {
		return fmt.Errorf("%w: %s", domain.ErrSameAccount, req.From)
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return fmt.Errorf("%w: metadata is not valid JSON", domain.ErrValidation)
	}
	return nil
}

// Lines lists an account's lines newest first.
func (s *LedgerService) Lines(ctx context.Context, account domain.Account, limit, offset int32) ([]domain.Line, error) {
	if err := s.catalog.CheckAccount(account); err != nil {
		return nil, err
	}
	var lines []domain.Line
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		lines, err = q.ListLines(ctx, repository.ListLinesParams{Account: account, Limit: limit, Offset: offset})
		return err
	})
	return lines, err
}
