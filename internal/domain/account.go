package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountType identifies a class of ledger accounts, e.g. "user_account".
type AccountType string

// Account is an addressable ledger bucket. Scope is an opaque owner key.
type Account struct {
	Type  AccountType `json:"identifier"`
	Scope string      `json:"scope,omitempty"`
}

// AccountDefinition describes an account type registered in the catalog.
// NegativeOnly is declarative metadata; the ledger does not enforce it.
type AccountDefinition struct {
	Type         AccountType `json:"identifier" mapstructure:"identifier"`
	Scoped       bool        `json:"scoped" mapstructure:"scoped"`
	NegativeOnly bool        `json:"negative_only" mapstructure:"negative_only"`
}

// UserAccount returns the spending account owned by the given user.
func UserAccount(userID uuid.UUID) Account {
	return Account{Type: AccountTypeUserAccount, Scope: userID.String()}
}

// UserCashAccount returns the account representing the user's own money outside the system.
func UserCashAccount(userID uuid.UUID) Account {
	return Account{Type: AccountTypeUserCash, Scope: userID.String()}
}

// Key is the canonical lock ordering key.
func (a Account) Key() string {
	return string(a.Type) + "\x00" + a.Scope
}

// IsZero reports whether the account reference is empty.
func (a Account) IsZero() bool {
	return a.Type == "" && a.Scope == ""
}

func (a Account) String() string {
	if a.Scope == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s:%s", a.Type, a.Scope)
}

// ParseAccount parses the "type:scope" form produced by String.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Account{}, fmt.Errorf("empty account reference")
	}
	typ, scope, _ := strings.Cut(s, ":")
	return Account{Type: AccountType(typ), Scope: scope}, nil
}
