package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
)

// AccountService registers users and moves money in and out of their spending accounts.
type AccountService struct {
	store  QueryStore
	ledger *LedgerService
	locks  *LockCoordinator
}

func NewAccountService(store QueryStore, ledger *LedgerService, locks *LockCoordinator) *AccountService {
	return &AccountService{
		store:  store,
		ledger: ledger,
		locks:  locks,
	}
}

// MoneyMovement is the pair of lines written by a deposit or withdrawal.
type MoneyMovement struct {
	Debit  *domain.Line
	Credit *domain.Line
}

// EnsureUser registers the user if unknown and returns it.
func (s *AccountService) EnsureUser(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var u domain.User
	err := s.store.RunInTx(ctx, func(ctx context.Context, q repository.Querier) error {
		existing, err := q.GetUser(ctx, userID)
		if err == nil {
			u = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		u = domain.User{ID: userID}
		return q.UpsertUser(ctx, &u)
	})
	return u, err
}

// SetCreditLimit stores a per-user override; nil restores the default.
func (s *AccountService) SetCreditLimit(ctx context.Context, userID uuid.UUID, limit *int64) (domain.User, error) {
	if limit != nil && *limit < 0 {
		v := &domain.ValidationError{}
		v.Add("credit_limit", domain.CodeGreaterThan, map[string]any{"count": -1})
		return domain.User{}, v
	}
	u := domain.User{ID: userID, CreditLimit: limit}
	err := s.locks.WithLockedAccounts(ctx, []domain.Account{u.Account()}, func(ctx context.Context, q repository.Querier) error {
		return q.UpsertUser(ctx, &u)
	})
	return u, err
}

// Statement pages through the user's spending account lines, newest first.
func (s *AccountService) Statement(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Line, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	return s.ledger.Lines(ctx, domain.UserAccount(userID), int32(pageSize), int32(offset))
}

// Deposit moves amount from the user's cash account into the spending account.
func (s *AccountService) Deposit(ctx context.Context, userID uuid.UUID, amount int64, metadata json.RawMessage) (*MoneyMovement, error) {
	if v := validateMovement(userID, amount); v.OrNil() != nil {
		return nil, v
	}
	from, to := domain.UserCashAccount(userID), domain.UserAccount(userID)

	var out *MoneyMovement
	err := s.locks.WithLockedAccounts(ctx, []domain.Account{from, to}, func(ctx context.Context, q repository.Querier) error {
		if err := requireUser(ctx, q, userID); err != nil {
			return err
		}
		debit, credit, err := s.ledger.Transfer(ctx, TransferRequest{
			Amount:   amount,
			Code:     domain.TransferDeposit,
			From:     from,
			To:       to,
			Metadata: metadata,
		})
		if err != nil {
			return err
		}
		out = &MoneyMovement{Debit: debit, Credit: credit}
		return nil
	})
	return out, err
}

// Withdraw moves amount back to the user's cash account. The spending account
// must hold a positive balance of at least amount.
func (s *AccountService) Withdraw(ctx context.Context, userID uuid.UUID, amount int64, metadata json.RawMessage) (*MoneyMovement, error) {
	if v := validateMovement(userID, amount); v.OrNil() != nil {
		return nil, v
	}
	from, to := domain.UserAccount(userID), domain.UserCashAccount(userID)

	var out *MoneyMovement
	err := s.locks.WithLockedAccounts(ctx, []domain.Account{from, to}, func(ctx context.Context, q repository.Querier) error {
		if err := requireUser(ctx, q, userID); err != nil {
			return err
		}
		balance, err := accountBalance(ctx, q, userID)
		if err != nil {
			return err
		}
		v := &domain.ValidationError{}
		if balance <= 0 {
			v.Add("user", domain.CodeAccountNoMoney, map[string]any{"account_balance": balance})
		} else if balance < amount {
			v.Add("amount", domain.CodeBiggerThanAccountBalance, map[string]any{"account_balance": balance})
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		debit, credit, err := s.ledger.Transfer(ctx, TransferRequest{
			Amount:   amount,
			Code:     domain.TransferWithdraw,
			From:     from,
			To:       to,
			Metadata: metadata,
		})
		if err != nil {
			return err
		}
		out = &MoneyMovement{Debit: debit, Credit: credit}
		return nil
	})
	return out, err
}

func validateMovement(userID uuid.UUID, amount int64) *domain.ValidationError {
	v := &domain.ValidationError{}
	if userID == uuid.Nil {
		v.Add("user", domain.CodeRequired, nil)
	}
	if amount <= 0 {
		v.Add("amount", domain.CodeGreaterThan, map[string]any{"count": 0})
	}
	return v
}

func requireUser(ctx context.Context, q repository.Querier, userID uuid.UUID) error {
	if _, err := q.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return err
	}
	return nil
}
