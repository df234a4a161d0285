package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrUnknownTransfer   = errors.New("unknown transfer")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrInvalidTransition = errors.New("invalid hold state transition")
	ErrImmutable         = errors.New("record is immutable")
	ErrHoldNotFound      = errors.New("authorization hold not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrLockTimeout       = errors.New("timed out acquiring account locks")
	ErrStorage           = errors.New("storage failure")
	ErrValidation        = errors.New("validation failed")
)

// Validation error codes.
const (
	CodeRequired                         = "required"
	CodeInvalid                          = "invalid"
	CodeGreaterThan                      = "greater_than"
	CodeInvalidUUID                      = "invalid_uuid"
	CodeHoldClosed                       = "user_authorization_hold_closed"
	CodeImmutable                        = "immutable"
	CodeRemainingCreditLimitInsufficient = "user_remaining_credit_limit_insufficient"
	CodeAccountNoMoney                   = "account_no_money"
	CodeBiggerThanAccountBalance         = "bigger_than_account_balance"
	CodeNotFound                         = "not_found"

	// FieldBase carries errors that are not tied to a single attribute.
	FieldBase = "base"
)

// FieldError is one diagnostic attached to an attribute (or FieldBase).
type FieldError struct {
	Field  string         `json:"field"`
	Code   string         `json:"error"`
	Params map[string]any `json:"params,omitempty"`
}

func (e FieldError) String() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("%s %s", e.Field, e.Code)
	}
	return fmt.Sprintf("%s %s %v", e.Field, e.Code, e.Params)
}

// ValidationError collects every diagnostic found before any write.
type ValidationError struct {
	Errors []FieldError
}

// Add appends a diagnostic.
func (v *ValidationError) Add(field, code string, params map[string]any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Params: params})
}

// Merge appends every diagnostic of other.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
}

// For returns the diagnostics attached to field.
func (v *ValidationError) For(field string) []FieldError {
	var out []FieldError
	for _, e := range v.Errors {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether field carries a diagnostic with the given code.
func (v *ValidationError) Has(field, code string) bool {
	for _, e := range v.For(field) {
		if e.Code == code {
			return true
		}
	}
	return false
}

// OrNil returns nil when nothing was collected.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, e.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets callers match with errors.Is(err, ErrValidation), and ErrImmutable
// when the immutability guard fired.
func (v *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrImmutable:
		return v.Has(FieldBase, CodeImmutable)
	}
	return false
}

// ImmutableDetails extracts the changed field names and persisted state reported by the guard.
func (v *ValidationError) ImmutableDetails() (changed []string, state HoldState, ok bool) {
	for _, e := range v.For(FieldBase) {
		if e.Code != CodeImmutable {
			continue
		}
		changed, _ = e.Params["changed_attribute_names"].([]string)
		state, _ = e.Params["current_state"].(HoldState)
		return changed, state, true
	}
	return nil, "", false
}

// AsValidation unwraps a *ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// StorageError wraps a persistence failure so callers can match ErrStorage
// while keeping the driver error reachable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
