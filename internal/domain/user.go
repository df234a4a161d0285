package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the external identity the ledger scopes accounts by.
// CreditLimit overrides the configured default when set.
type User struct {
	ID          uuid.UUID
	CreditLimit *int64
	CreatedAt   time.Time
}

// Account returns the user's spending account.
func (u User) Account() Account {
	return UserAccount(u.ID)
}
