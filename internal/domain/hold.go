package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HoldState is the lifecycle state of an authorization hold.
type HoldState string

var holdTransitions = map[HoldState]map[HoldState]struct{}{
	HoldStateHolding: {
		HoldStateClosed:   {},
		HoldStateReversed: {},
	},
	HoldStateClosed:   {},
	HoldStateReversed: {},
}

// Valid reports whether s is a known state.
func (s HoldState) Valid() bool {
	_, ok := holdTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s HoldState) Terminal() bool {
	return s.Valid() && len(holdTransitions[s]) == 0
}

// CanTransition reports whether s -> next is a legal event.
func (s HoldState) CanTransition(next HoldState) bool {
	nextStates, ok := holdTransitions[s]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// Hold is a pending reservation against a user's spending account.
type Hold struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Amount         int64
	TransferCode   TransferCode
	PartnerAccount Account
	Detail         *DetailRef
	Metadata       json.RawMessage
	State          HoldState
	CaptureLineID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// persisted is the last state read from storage; nil for a hold never saved.
	persisted *Hold
}

// NewHold builds an unsaved hold in the initial state.
func NewHold(id uuid.UUID) *Hold {
	return &Hold{ID: id, State: HoldStateHolding}
}

// RestoreHoldFromStorage reconstitutes a hold read from storage and records it as the
// last-persisted baseline for the immutability guard. Only storage adapters call it.
func RestoreHoldFromStorage(row Hold) *Hold {
	h := row
	h.persisted = nil
	baseline := h.clone()
	h.persisted = baseline
	return &h
}

// Persisted returns a copy of the last-persisted baseline, or nil for a new hold.
func (h *Hold) Persisted() *Hold {
	if h.persisted == nil {
		return nil
	}
	return h.persisted.clone()
}

// IsNew reports whether the hold has never been read from storage.
func (h *Hold) IsNew() bool {
	return h.persisted == nil
}

// UserAccount is the account debited on capture.
func (h *Hold) UserAccount() Account {
	return UserAccount(h.UserID)
}

// LockAccounts lists the accounts a capture must lock.
func (h *Hold) LockAccounts() []Account {
	return []Account{h.UserAccount(), h.PartnerAccount}
}

// Capture moves the hold to closed and records the debit line.
func (h *Hold) Capture(debitLineID uuid.UUID) error {
	if !h.State.CanTransition(HoldStateClosed) {
		return fmt.Errorf("%w: capture from %s", ErrInvalidTransition, h.State)
	}
	h.State = HoldStateClosed
	h.CaptureLineID = &debitLineID
	return nil
}

// Release moves the hold to reversed. No money moves.
func (h *Hold) Release() error {
	if !h.State.CanTransition(HoldStateReversed) {
		return fmt.Errorf("%w: release from %s", ErrInvalidTransition, h.State)
	}
	h.State = HoldStateReversed
	return nil
}

// ChangedFields lists the attributes that differ from base, in column order.
func (h *Hold) ChangedFields(base *Hold) []string {
	if base == nil {
		return nil
	}
	var changed []string
	if h.State != base.State {
		changed = append(changed, "state")
	}
	if h.UserID != base.UserID {
		changed = append(changed, "user_id")
	}
	if h.Amount != base.Amount {
		changed = append(changed, "amount")
	}
	if h.TransferCode != base.TransferCode {
		changed = append(changed, "transfer_code")
	}
	if h.PartnerAccount.Type != base.PartnerAccount.Type {
		changed = append(changed, "partner_account_identifier")
	}
	if h.PartnerAccount.Scope != base.PartnerAccount.Scope {
		changed = append(changed, "partner_account_scope")
	}
	if !sameLineRef(h.CaptureLineID, base.CaptureLineID) {
		changed = append(changed, "capture_line_id")
	}
	hk, hid := detailParts(h.Detail)
	bk, bid := detailParts(base.Detail)
	if hk != bk {
		changed = append(changed, "detail_kind")
	}
	if hid != bid {
		changed = append(changed, "detail_id")
	}
	if !sameJSON(h.Metadata, base.Metadata) {
		changed = append(changed, "metadata")
	}
	return changed
}

// Validate runs the field checks against the baseline recorded when the hold was loaded.
func (h *Hold) Validate(c *Catalog) *ValidationError {
	return h.ValidateAgainst(c, h.persisted)
}

// ValidateAgainst runs the field checks using stored as the last-persisted state.
// stored is nil when the hold does not exist yet.
func (h *Hold) ValidateAgainst(c *Catalog, stored *Hold) *ValidationError {
	v := &ValidationError{}

	if stored != nil && stored.State.Terminal() {
		if changed := h.ChangedFields(stored); len(changed) > 0 {
			v.Add(FieldBase, CodeImmutable, map[string]any{
				"message":                 "is immutable",
				"changed_attribute_names": changed,
				"current_state":           stored.State,
			})
		}
	}

	if h.ID == uuid.Nil {
		v.Add("id", CodeInvalidUUID, nil)
	}
	if h.UserID == uuid.Nil {
		v.Add("user", CodeRequired, nil)
	}
	if !h.State.Valid() {
		v.Add("state", CodeInvalid, nil)
	}
	if h.Amount <= 0 {
		v.Add("amount", CodeGreaterThan, map[string]any{"count": 0})
	}

	def, ok := c.HoldableTransfer(h.TransferCode)
	if !ok {
		v.Add("transfer_code", CodeInvalid, map[string]any{
			"available_transfer_codes": c.HoldableCodes(),
		})
	} else if h.PartnerAccount.Type != def.To || c.CheckAccount(h.PartnerAccount) != nil {
		v.Add("partner_account", CodeInvalid, map[string]any{
			"available_partner_account_identifier": def.To,
		})
	}

	return v
}

// Clone returns a deep copy that keeps the same persisted baseline.
func (h *Hold) Clone() *Hold {
	c := h.clone()
	c.persisted = h.persisted
	return c
}

func (h *Hold) clone() *Hold {
	c := *h
	c.persisted = nil
	if h.Detail != nil {
		d := *h.Detail
		c.Detail = &d
	}
	if h.CaptureLineID != nil {
		id := *h.CaptureLineID
		c.CaptureLineID = &id
	}
	if h.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), h.Metadata...)
	}
	return &c
}

func sameLineRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func detailParts(d *DetailRef) (string, string) {
	if d == nil {
		return "", ""
	}
	return d.Kind, d.ID
}
