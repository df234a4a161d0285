package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
)

// CreditSummary is one consistent read of a user's money position.
type CreditSummary struct {
	UserID               uuid.UUID
	AccountBalance       int64
	OpenHoldAmount       int64
	AvailableBalance     int64
	CreditLimit          int64
	RemainingCreditLimit int64
}

// CreditService derives balances and credit headroom from the ledger and open holds.
type CreditService struct {
	store        QueryStore
	defaultLimit int64
}

func NewCreditService(store QueryStore, defaultLimit int64) *CreditService {
	return &CreditService{store: store, defaultLimit: defaultLimit}
}

// AccountBalance is the balance of the user's spending account; zero before first use.
func (s *CreditService) AccountBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var out int64
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		out, err = accountBalance(ctx, q, userID)
		return err
	})
	return out, err
}

// OpenHoldAmount sums the user's holds still in state holding.
func (s *CreditService) OpenHoldAmount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var out int64
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		out, err = q.SumHoldingAmount(ctx, userID, uuid.Nil)
		return err
	})
	return out, err
}

// AvailableBalance is the account balance minus open holds.
func (s *CreditService) AvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sum.AvailableBalance, nil
}

// RemainingCreditLimit is credit limit plus balance minus open holds.
func (s *CreditService) RemainingCreditLimit(ctx context.Context, userID uuid.UUID) (int64, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sum.RemainingCreditLimit, nil
}

// CreditLimit is the user's override, else the configured default.
func (s *CreditService) CreditLimit(ctx context.Context, userID uuid.UUID) (int64, error) {
	var out int64
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		out, err = s.creditLimit(ctx, q, userID)
		return err
	})
	return out, err
}

// Summary reads every figure in one pass.
func (s *CreditService) Summary(ctx context.Context, userID uuid.UUID) (CreditSummary, error) {
	sum := CreditSummary{UserID: userID}
	err := read(ctx, s.store, func(q repository.Querier) error {
		limit, err := s.creditLimit(ctx, q, userID)
		if err != nil {
			return err
		}
		balance, err := accountBalance(ctx, q, userID)
		if err != nil {
			return err
		}
		open, err := q.SumHoldingAmount(ctx, userID, uuid.Nil)
		if err != nil {
			return err
		}
		sum.CreditLimit = limit
		sum.AccountBalance = balance
		sum.OpenHoldAmount = open
		sum.AvailableBalance = balance - open
		sum.RemainingCreditLimit = limit + balance - open
		return nil
	})
	return sum, err
}

// checkHold verifies the credit headroom for h, leaving h's own stored amount
// out of the open holds since it is being replaced.
func (s *CreditService) checkHold(ctx context.Context, q repository.Querier, h *domain.Hold) (*domain.ValidationError, error) {
	v := &domain.ValidationError{}
	limit, err := s.creditLimit(ctx, q, h.UserID)
	if err != nil {
		return nil, err
	}
	balance, err := accountBalance(ctx, q, h.UserID)
	if err != nil {
		return nil, err
	}
	open, err := q.SumHoldingAmount(ctx, h.UserID, h.ID)
	if err != nil {
		return nil, err
	}
	remaining := limit + balance - open
	if remaining-h.Amount < 0 {
		v.Add("amount", domain.CodeRemainingCreditLimitInsufficient, map[string]any{
			"limit":  remaining,
			"amount": h.Amount,
		})
	}
	return v, nil
}

func (s *CreditService) creditLimit(ctx context.Context, q repository.Querier, userID uuid.UUID) (int64, error) {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return 0, err
	}
	if u.CreditLimit != nil {
		return *u.CreditLimit, nil
	}
	return s.defaultLimit, nil
}

func accountBalance(ctx context.Context, q repository.Querier, userID uuid.UUID) (int64, error) {
	row, err := q.GetAccountBalance(ctx, domain.UserAccount(userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Balance, nil
}
