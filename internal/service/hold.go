package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/observability"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxLockPlanAttempts bounds how often a hold operation re-plans its lock set
// after the hold moved to other accounts between planning and locking.
const maxLockPlanAttempts = 3

var errLockSetChanged = errors.New("hold accounts changed while locking")

// HoldService runs the authorization hold lifecycle.
type HoldService struct {
	store   QueryStore
	catalog *domain.Catalog
	ledger  *LedgerService
	locks   *LockCoordinator
	credit  *CreditService
}

func NewHoldService(store QueryStore, catalog *domain.Catalog, ledger *LedgerService, locks *LockCoordinator, credit *CreditService) *HoldService {
	return &HoldService{
		store:   store,
		catalog: catalog,
		ledger:  ledger,
		locks:   locks,
		credit:  credit,
	}
}

// Get loads a hold by id.
func (s *HoldService) Get(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	var h *domain.Hold
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		h, err = findHold(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrHoldNotFound, id)
	}
	return h, nil
}

// ListByUser lists a user's holds; an empty state matches all.
func (s *HoldService) ListByUser(ctx context.Context, userID uuid.UUID, state domain.HoldState) ([]*domain.Hold, error) {
	var holds []*domain.Hold
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		holds, err = q.ListHoldsByUser(ctx, userID, state)
		return err
	})
	return holds, err
}

// ListByDetail lists the holds referencing an upstream record.
func (s *HoldService) ListByDetail(ctx context.Context, detail domain.DetailRef) ([]*domain.Hold, error) {
	var holds []*domain.Hold
	err := read(ctx, s.store, func(q repository.Querier) error {
		var err error
		holds, err = q.ListHoldsByDetail(ctx, detail)
		return err
	})
	return holds, err
}

// Capture moves the held amount from the user's account to the partner
// account and closes the hold, all in one transaction.
func (s *HoldService) Capture(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	var captured *domain.Hold
	err := s.withHoldLocks(ctx, id,
		func(h *domain.Hold) []domain.Account {
			if h == nil {
				return nil
			}
			return h.LockAccounts()
		},
		func(ctx context.Context, q repository.Querier, h *domain.Hold) error {
			if h == nil {
				return fmt.Errorf("%w: %s", domain.ErrHoldNotFound, id)
			}
			if !h.State.CanTransition(domain.HoldStateClosed) {
				return fmt.Errorf("%w: hold %s is %s", domain.ErrInvalidTransition, id, h.State)
			}

			metadata, err := domain.MergeMetadata(h.Metadata, map[string]any{
				domain.MetadataHoldIDKey: h.ID.String(),
			})
			if err != nil {
				return err
			}
			debit, _, err := s.ledger.Transfer(ctx, TransferRequest{
				Amount:   h.Amount,
				Code:     h.TransferCode,
				From:     h.UserAccount(),
				To:       h.PartnerAccount,
				Detail:   h.Detail,
				Metadata: metadata,
			})
			if err != nil {
				return fmt.Errorf("capture hold %s: %w", id, err)
			}
			if err := h.Capture(debit.ID); err != nil {
				return err
			}
			if err := s.persist(ctx, q, h, h.Persisted()); err != nil {
				return err
			}
			captured = h
			return nil
		})
	s.record("capture", id, err)
	return captured, err
}

// Release reverses the hold. No money moves.
func (s *HoldService) Release(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	var released *domain.Hold
	err := s.withHoldLocks(ctx, id,
		func(h *domain.Hold) []domain.Account {
			if h == nil {
				return nil
			}
			return []domain.Account{h.UserAccount()}
		},
		func(ctx context.Context, q repository.Querier, h *domain.Hold) error {
			if h == nil {
				return fmt.Errorf("%w: %s", domain.ErrHoldNotFound, id)
			}
			if err := h.Release(); err != nil {
				return fmt.Errorf("hold %s: %w", id, err)
			}
			if err := s.persist(ctx, q, h, h.Persisted()); err != nil {
				return err
			}
			released = h
			return nil
		})
	s.record("release", id, err)
	return released, err
}

// Save validates h against the stored row and writes it under the user's
// account lock. extra accounts are locked in the same transaction. On success
// h is refreshed from storage.
func (s *HoldService) Save(ctx context.Context, h *domain.Hold, extra ...domain.Account) error {
	err := s.withHoldLocks(ctx, h.ID,
		func(stored *domain.Hold) []domain.Account {
			accounts := append([]domain.Account(nil), extra...)
			if h.UserID != uuid.Nil {
				accounts = append(accounts, h.UserAccount())
			}
			if stored != nil {
				accounts = append(accounts, stored.UserAccount())
			}
			return accounts
		},
		func(ctx context.Context, q repository.Querier, stored *domain.Hold) error {
			return s.persist(ctx, q, h, stored)
		})
	s.record("save", h.ID, err)
	return err
}

// withHoldLocks plans the lock set from the hold as currently stored, locks
// it, re-reads the hold under the locks and runs fn. When the re-read hold
// needs accounts outside the locked set the whole step is retried.
// plan receives nil when the hold does not exist.
func (s *HoldService) withHoldLocks(
	ctx context.Context,
	id uuid.UUID,
	plan func(h *domain.Hold) []domain.Account,
	fn func(ctx context.Context, q repository.Querier, h *domain.Hold) error,
) error {
	for attempt := 1; ; attempt++ {
		var planned *domain.Hold
		err := read(ctx, s.store, func(q repository.Querier) error {
			var err error
			planned, err = findHold(ctx, q, id)
			return err
		})
		if err != nil {
			return err
		}
		locked := plan(planned)

		err = s.locks.WithLockedAccounts(ctx, locked, func(ctx context.Context, q repository.Querier) error {
			current, err := findHold(ctx, q, id)
			if err != nil {
				return err
			}
			for _, a := range plan(current) {
				if !containsAccount(locked, a) {
					return errLockSetChanged
				}
			}
			return fn(ctx, q, current)
		})
		if errors.Is(err, errLockSetChanged) && attempt < maxLockPlanAttempts {
			zap.L().Info("re-planning hold locks", zap.String("hold_id", id.String()), zap.Int("attempt", attempt))
			continue
		}
		return err
	}
}

// persist validates h against stored, the row as read under lock, and writes it.
func (s *HoldService) persist(ctx context.Context, q repository.Querier, h *domain.Hold, stored *domain.Hold) error {
	v := h.ValidateAgainst(s.catalog, stored)
	if !v.Has(domain.FieldBase, domain.CodeImmutable) && h.UserID != uuid.Nil {
		refs, err := s.checkReferences(ctx, q, h, stored)
		if err != nil {
			return err
		}
		v.Merge(refs)
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	if stored == nil {
		if err := q.InsertHold(ctx, h); err != nil {
			return err
		}
	} else {
		rows, err := q.UpdateHold(ctx, h)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "update hold"); err != nil {
			return err
		}
	}

	fresh, err := q.GetHold(ctx, h.ID)
	if err != nil {
		return err
	}
	*h = *fresh
	return nil
}

// checkReferences verifies the user exists and, for a holding hold that is
// new or changed amount or owner, that the user has credit headroom.
func (s *HoldService) checkReferences(ctx context.Context, q repository.Querier, h *domain.Hold, stored *domain.Hold) (*domain.ValidationError, error) {
	v := &domain.ValidationError{}
	if _, err := q.GetUser(ctx, h.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			v.Add("user", domain.CodeNotFound, nil)
			return v, nil
		}
		return nil, err
	}

	if h.State != domain.HoldStateHolding || h.Amount <= 0 {
		return v, nil
	}
	if stored != nil && stored.Amount == h.Amount && stored.UserID == h.UserID {
		return v, nil
	}
	return s.credit.checkHold(ctx, q, h)
}

func (s *HoldService) record(operation string, id uuid.UUID, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, domain.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, domain.ErrHoldNotFound):
		outcome = "not_found"
	case errors.Is(err, domain.ErrLockTimeout):
		outcome = "lock_timeout"
	default:
		outcome = "error"
	}
	observability.IncrementHoldOperation(operation, outcome)

	if err == nil {
		zap.L().Info("authorization hold "+operation, zap.String("hold_id", id.String()))
		return
	}
	if outcome == "error" {
		zap.L().Error("authorization hold "+operation+" failed", zap.String("hold_id", id.String()), zap.Error(err))
	}
}

// findHold returns the stored hold, or nil when it does not exist.
func findHold(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Hold, error) {
	h, err := q.GetHold(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}
