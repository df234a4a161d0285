package models

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/google/uuid"
)

// AccountRef addresses a ledger account on the wire.
type AccountRef struct {
	Identifier string `json:"identifier" validate:"required"`
	Scope      string `json:"scope,omitempty"`
}

// DetailRef points at the upstream record a hold or line belongs to.
type DetailRef struct {
	Kind string `json:"kind" validate:"required"`
	ID   string `json:"id" validate:"required"`
}

// UpsertHoldRequest is the body of PUT /v1/holds/{id}. Absent fields are left
// untouched on an existing hold.
type UpsertHoldRequest struct {
	UserID         *string         `json:"user_id" validate:"omitempty,uuid"`
	Amount         *string         `json:"amount" validate:"omitempty,decimal_amount"`
	TransferCode   *string         `json:"transfer_code"`
	PartnerAccount *AccountRef     `json:"partner_account" validate:"omitempty"`
	Detail         *DetailRef      `json:"detail" validate:"omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
}

// MoneyMovementRequest is the body of deposits and withdrawals.
type MoneyMovementRequest struct {
	Amount   string          `json:"amount" validate:"required,decimal_amount"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreditLimitRequest sets a per-user credit limit; null restores the default.
type CreditLimitRequest struct {
	CreditLimit *string `json:"credit_limit" validate:"omitempty,decimal_amount"`
}

type Hold struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Amount         string           `json:"amount"`
	TransferCode   string           `json:"transfer_code"`
	PartnerAccount AccountRef       `json:"partner_account"`
	Detail         *DetailRef       `json:"detail,omitempty"`
	Metadata       json.RawMessage  `json:"metadata,omitempty"`
	State          domain.HoldState `json:"state"`
	CaptureLineID  *uuid.UUID       `json:"capture_line_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type Line struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	Account       AccountRef      `json:"account"`
	Code          string          `json:"code"`
	Amount        string          `json:"amount"`
	Balance       string          `json:"balance"`
	Partner       AccountRef      `json:"partner_account"`
	PartnerLineID uuid.UUID       `json:"partner_line_id"`
	Detail        *DetailRef      `json:"detail,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type MoneyMovement struct {
	Debit  Line `json:"debit"`
	Credit Line `json:"credit"`
}

// Balance is the credit summary of one user.
type Balance struct {
	UserID               uuid.UUID `json:"user_id"`
	AccountBalance       string    `json:"account_balance"`
	OpenHoldAmount       string    `json:"open_hold_amount"`
	AvailableBalance     string    `json:"available_balance"`
	CreditLimit          string    `json:"credit_limit"`
	RemainingCreditLimit string    `json:"remaining_credit_limit"`
}

type User struct {
	ID          uuid.UUID `json:"id"`
	CreditLimit *string   `json:"credit_limit"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidationResult is returned by a dry-run upsert.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors []domain.FieldError `json:"errors"`
}

func NewAccountRef(a domain.Account) AccountRef {
	return AccountRef{Identifier: string(a.Type), Scope: a.Scope}
}

// Account converts the wire form back to a ledger account.
func (a AccountRef) Account() domain.Account {
	return domain.Account{Type: domain.AccountType(a.Identifier), Scope: a.Scope}
}

func newDetailRef(d *domain.DetailRef) *DetailRef {
	if d == nil {
		return nil
	}
	return &DetailRef{Kind: d.Kind, ID: d.ID}
}

// Domain converts the wire form to a domain detail reference.
func (d *DetailRef) Domain() *domain.DetailRef {
	if d == nil {
		return nil
	}
	return &domain.DetailRef{Kind: d.Kind, ID: d.ID}
}

func NewHold(h *domain.Hold, exponent int32) Hold {
	return Hold{
		ID:             h.ID,
		UserID:         h.UserID,
		Amount:         domain.FormatAmount(h.Amount, exponent),
		TransferCode:   string(h.TransferCode),
		PartnerAccount: NewAccountRef(h.PartnerAccount),
		Detail:         newDetailRef(h.Detail),
		Metadata:       h.Metadata,
		State:          h.State,
		CaptureLineID:  h.CaptureLineID,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

func NewLine(l domain.Line, exponent int32) Line {
	return Line{
		ID:            l.ID,
		Seq:           l.Seq,
		Account:       NewAccountRef(l.Account),
		Code:          string(l.Code),
		Amount:        domain.FormatAmount(l.Amount, exponent),
		Balance:       domain.FormatAmount(l.Balance, exponent),
		Partner:       NewAccountRef(l.Partner),
		PartnerLineID: l.PartnerLineID,
		Detail:        newDetailRef(l.Detail),
		Metadata:      l.Metadata,
		CreatedAt:     l.CreatedAt,
	}
}

func NewBalance(sum service.CreditSummary, exponent int32) Balance {
	return Balance{
		UserID:               sum.UserID,
		AccountBalance:       domain.FormatAmount(sum.AccountBalance, exponent),
		OpenHoldAmount:       domain.FormatAmount(sum.OpenHoldAmount, exponent),
		AvailableBalance:     domain.FormatAmount(sum.AvailableBalance, exponent),
		CreditLimit:          domain.FormatAmount(sum.CreditLimit, exponent),
		RemainingCreditLimit: domain.FormatAmount(sum.RemainingCreditLimit, exponent),
	}
}

func NewUser(u domain.User, exponent int32) User {
	out := User{ID: u.ID, CreatedAt: u.CreatedAt}
	if u.CreditLimit != nil {
		limit := domain.FormatAmount(*u.CreditLimit, exponent)
		out.CreditLimit = &limit
	}
	return out
}
