package service

import (
	"fmt"

	"github.com/ayo6706/hold-ledger/internal/domain"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return domain.StorageError(operation, fmt.Errorf("affected %d rows", rows))
	}
	return nil
}

func containsAccount(accounts []domain.Account, a domain.Account) bool {
	for _, existing := range accounts {
		if existing == a {
			return true
		}
	}
	return false
}
