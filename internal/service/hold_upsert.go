package service

import (
	"context"
	"encoding/json"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/repository"
	"github.com/google/uuid"
)

// UpsertHoldCmd creates a hold or partially updates an open one. Nil fields
// are left untouched on update; a new hold needs all of UserID, Amount,
// TransferCode and PartnerAccount.
type UpsertHoldCmd struct {
	ID             uuid.UUID
	UserID         *uuid.UUID
	Amount         *int64
	TransferCode   *domain.TransferCode
	PartnerAccount *domain.Account
	Detail         *domain.DetailRef
	Metadata       json.RawMessage
}

// Upsert applies cmd under the lock of the user's account plus extra. When ctx
// already carries a transaction the upsert joins it, so a caller can write its
// own records and the hold atomically.
func (s *HoldService) Upsert(ctx context.Context, cmd UpsertHoldCmd, extra ...domain.Account) (*domain.Hold, error) {
	h, _, err := s.Put(ctx, cmd, extra...)
	return h, err
}

// Put is Upsert that also reports whether the hold was inserted. The answer
// comes from the row read under the lock, so concurrent puts agree on it.
func (s *HoldService) Put(ctx context.Context, cmd UpsertHoldCmd, extra ...domain.Account) (*domain.Hold, bool, error) {
	if cmd.ID == uuid.Nil {
		v := &domain.ValidationError{}
		v.Add("id", domain.CodeInvalidUUID, nil)
		s.record("upsert", cmd.ID, v)
		return nil, false, v
	}

	var saved *domain.Hold
	var created bool
	err := s.withHoldLocks(ctx, cmd.ID,
		func(stored *domain.Hold) []domain.Account {
			accounts := append([]domain.Account(nil), extra...)
			if cmd.UserID != nil && *cmd.UserID != uuid.Nil {
				accounts = append(accounts, domain.UserAccount(*cmd.UserID))
			}
			if stored != nil {
				accounts = append(accounts, stored.UserAccount())
			}
			return accounts
		},
		func(ctx context.Context, q repository.Querier, stored *domain.Hold) error {
			h, v := buildHold(stored, cmd)
			if err := v.OrNil(); err != nil {
				return err
			}
			if err := s.persist(ctx, q, h, stored); err != nil {
				return err
			}
			saved = h
			created = stored == nil
			return nil
		})
	s.record("upsert", cmd.ID, err)
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

// ValidateUpsert reports the diagnostics Upsert would return, without writing.
func (s *HoldService) ValidateUpsert(ctx context.Context, cmd UpsertHoldCmd) (*domain.ValidationError, error) {
	out := &domain.ValidationError{}
	err := read(ctx, s.store, func(q repository.Querier) error {
		var stored *domain.Hold
		if cmd.ID != uuid.Nil {
			var err error
			if stored, err = findHold(ctx, q, cmd.ID); err != nil {
				return err
			}
		}
		h, v := buildHold(stored, cmd)
		out.Merge(v)
		if len(v.Errors) > 0 {
			return nil
		}
		hv := h.ValidateAgainst(s.catalog, stored)
		mergeNew(out, hv)
		if h.UserID != uuid.Nil && !hv.Has(domain.FieldBase, domain.CodeImmutable) {
			refs, err := s.checkReferences(ctx, q, h, stored)
			if err != nil {
				return err
			}
			out.Merge(refs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildHold loads-or-builds the hold for cmd and applies the present fields.
// A stored hold that is no longer holding is reported before anything is applied.
func buildHold(stored *domain.Hold, cmd UpsertHoldCmd) (*domain.Hold, *domain.ValidationError) {
	v := &domain.ValidationError{}
	if cmd.ID == uuid.Nil {
		v.Add("id", domain.CodeInvalidUUID, nil)
	}

	var h *domain.Hold
	if stored != nil {
		if stored.State != domain.HoldStateHolding {
			v.Add("id", domain.CodeHoldClosed, map[string]any{
				"id":    stored.ID.String(),
				"state": stored.State,
			})
			return stored, v
		}
		h = stored.Clone()
	} else {
		h = domain.NewHold(cmd.ID)
	}

	if cmd.UserID != nil {
		h.UserID = *cmd.UserID
	}
	if cmd.Amount != nil {
		h.Amount = *cmd.Amount
	}
	if cmd.TransferCode != nil && *cmd.TransferCode != "" {
		h.TransferCode = *cmd.TransferCode
	}
	if cmd.PartnerAccount != nil && !cmd.PartnerAccount.IsZero() {
		h.PartnerAccount = *cmd.PartnerAccount
	}
	if cmd.Detail != nil {
		d := *cmd.Detail
		h.Detail = &d
	}
	if !domain.IsNullJSON(cmd.Metadata) {
		h.Metadata = append(json.RawMessage(nil), cmd.Metadata...)
	}
	return h, v
}

// mergeNew appends the diagnostics of src that dst does not carry yet.
func mergeNew(dst, src *domain.ValidationError) {
	for _, e := range src.Errors {
		if !dst.Has(e.Field, e.Code) {
			dst.Errors = append(dst.Errors, e)
		}
	}
}
