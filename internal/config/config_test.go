package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads; viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "STORAGE", "LOG_LEVEL", "DEFAULT_CREDIT_LIMIT",
		"CURRENCY_EXPONENT", "LOCK_TIMEOUT", "RECONCILIATION_INTERVAL", "IDEMPOTENCY_TTL",
		"RATE_LIMIT_RPS", "ACCOUNTING_CONFIG", "MIGRATIONS_DIR",
	} {
		t.Setenv(name, "")
		t.Setenv("HOLDLEDGER_"+name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, domain.DefaultCurrencyExponent, cfg.CurrencyExponent)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, time.Hour, cfg.ReconciliationInterval)
	assert.Zero(t, cfg.DefaultCreditLimit)
	require.NotNil(t, cfg.Catalog)
	_, ok := cfg.Catalog.HoldableTransfer(domain.TransferUserTransfer)
	assert.True(t, ok)
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "memory")
	t.Setenv("HOLDLEDGER_DEFAULT_CREDIT_LIMIT", "5000")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cfg.DefaultCreditLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 1, cfg.RateLimitRPS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "storage", env: map[string]string{"STORAGE": "mysql"}},
		{name: "lock timeout", env: map[string]string{"STORAGE": "memory", "LOCK_TIMEOUT": "soon"}},
		{name: "negative credit", env: map[string]string{"STORAGE": "memory", "DEFAULT_CREDIT_LIMIT": "-1"}},
		{name: "missing catalog", env: map[string]string{"STORAGE": "memory", "ACCOUNTING_CONFIG": "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounting.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
accounts:
  - identifier: user_cash
    scoped: true
    negative_only: true
  - identifier: user_account
    scoped: true
  - identifier: fees
transfers:
  - code: withdraw
    from: user_account
    to: user_cash
  - code: fee
    from: user_account
    to: fees
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.TransferCode{"fee", domain.TransferWithdraw}, catalog.HoldableCodes())
	assert.NoError(t, catalog.CheckAccount(domain.Account{Type: "fees"}))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
accounts:
  - identifier: user_account
transfers:
  - code: deposit
    from: user_cash
    to: user_account
`), 0o600))
	_, err = LoadCatalog(bad)
	assert.ErrorContains(t, err, "unknown from account")
}
