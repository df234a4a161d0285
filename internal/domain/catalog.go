package domain

import (
	"fmt"
	"sort"
)

// TransferCode names a legal movement between two account types.
type TransferCode string

// TransferDefinition is one (code, from, to) entry of the catalog.
type TransferDefinition struct {
	Code TransferCode `json:"code" mapstructure:"code"`
	From AccountType  `json:"from" mapstructure:"from"`
	To   AccountType  `json:"to" mapstructure:"to"`
}

// Catalog is the registry of account types and legal transfers.
// It is built once from configuration and never mutated afterwards.
type Catalog struct {
	accounts  map[AccountType]AccountDefinition
	transfers map[TransferCode]TransferDefinition
	holdable  []TransferDefinition
}

// NewCatalog validates the definitions and freezes them.
func NewCatalog(accounts []AccountDefinition, transfers []TransferDefinition) (*Catalog, error) {
	c := &Catalog{
		accounts:  make(map[AccountType]AccountDefinition, len(accounts)),
		transfers: make(map[TransferCode]TransferDefinition, len(transfers)),
	}
	for _, a := range accounts {
		if a.Type == "" {
			return nil, fmt.Errorf("account definition with empty identifier")
		}
		if _, dup := c.accounts[a.Type]; dup {
			return nil, fmt.Errorf("duplicate account definition %q", a.Type)
		}
		c.accounts[a.Type] = a
	}
	for _, t := range transfers {
		if t.Code == "" {
			return nil, fmt.Errorf("transfer definition with empty code")
		}
		if _, dup := c.transfers[t.Code]; dup {
			return nil, fmt.Errorf("duplicate transfer code %q", t.Code)
		}
		if _, ok := c.accounts[t.From]; !ok {
			return nil, fmt.Errorf("transfer %q: unknown from account %q", t.Code, t.From)
		}
		if _, ok := c.accounts[t.To]; !ok {
			return nil, fmt.Errorf("transfer %q: unknown to account %q", t.Code, t.To)
		}
		c.transfers[t.Code] = t
		if t.From == AccountTypeUserAccount {
			c.holdable = append(c.holdable, t)
		}
	}
	sort.Slice(c.holdable, func(i, j int) bool { return c.holdable[i].Code < c.holdable[j].Code })
	return c, nil
}

// DefaultCatalog returns the catalog built from the default definitions.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultAccountDefinitions(), DefaultTransferDefinitions())
	if err != nil {
		panic(err)
	}
	return c
}

// Account returns the definition of an account type.
func (c *Catalog) Account(t AccountType) (AccountDefinition, bool) {
	a, ok := c.accounts[t]
	return a, ok
}

// CheckAccount verifies that the account type is defined and its scope is set when required.
func (c *Catalog) CheckAccount(a Account) error {
	def, ok := c.accounts[a.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, a.Type)
	}
	if def.Scoped && a.Scope == "" {
		return fmt.Errorf("%w: %q requires a scope", ErrUnknownAccount, a.Type)
	}
	if !def.Scoped && a.Scope != "" {
		return fmt.Errorf("%w: %q is not scoped", ErrUnknownAccount, a.Type)
	}
	return nil
}

// Transfer resolves a code.
func (c *Catalog) Transfer(code TransferCode) (TransferDefinition, bool) {
	t, ok := c.transfers[code]
	return t, ok
}

// ResolveTransfer checks that code moves money from the given account type to the given one.
func (c *Catalog) ResolveTransfer(code TransferCode, from, to AccountType) (TransferDefinition, error) {
	t, ok := c.transfers[code]
	if !ok {
		return TransferDefinition{}, fmt.Errorf("%w: %q", ErrUnknownTransfer, code)
	}
	if t.From != from || t.To != to {
		return TransferDefinition{}, fmt.Errorf("%w: %q is defined %s -> %s, got %s -> %s",
			ErrUnknownTransfer, code, t.From, t.To, from, to)
	}
	return t, nil
}

// HoldableTransfer returns the definition when code may be used by an authorization hold,
// i.e. it debits the user's spending account.
func (c *Catalog) HoldableTransfer(code TransferCode) (TransferDefinition, bool) {
	t, ok := c.transfers[code]
	if !ok || t.From != AccountTypeUserAccount {
		return TransferDefinition{}, false
	}
	return t, true
}

// HoldableCodes lists codes usable by authorization holds, sorted.
func (c *Catalog) HoldableCodes() []TransferCode {
	codes := make([]TransferCode, 0, len(c.holdable))
	for _, t := range c.holdable {
		codes = append(codes, t.Code)
	}
	return codes
}
