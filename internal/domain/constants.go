package domain

// Default chart of accounts. Catalog configuration may extend these.
const (
	AccountTypeUserCash    AccountType = "user_cash"
	AccountTypeUserAccount AccountType = "user_account"

	TransferDeposit      TransferCode = "deposit"
	TransferWithdraw     TransferCode = "withdraw"
	TransferUserTransfer TransferCode = "user_transfer"

	HoldStateHolding  HoldState = "holding"
	HoldStateClosed   HoldState = "closed"
	HoldStateReversed HoldState = "reversed"

	// MetadataHoldIDKey is stamped onto both capture lines.
	MetadataHoldIDKey = "authorization_hold_id"
	// MetadataValueKey wraps non-object metadata when merged into line metadata.
	MetadataValueKey = "value"
)

// DefaultAccountDefinitions mirrors the accounts shipped with the service.
func DefaultAccountDefinitions() []AccountDefinition {
	return []AccountDefinition{
		{Type: AccountTypeUserCash, Scoped: true, NegativeOnly: true},
		{Type: AccountTypeUserAccount, Scoped: true},
	}
}

// DefaultTransferDefinitions mirrors the transfers shipped with the service.
func DefaultTransferDefinitions() []TransferDefinition {
	return []TransferDefinition{
		{Code: TransferDeposit, From: AccountTypeUserCash, To: AccountTypeUserAccount},
		{Code: TransferWithdraw, From: AccountTypeUserAccount, To: AccountTypeUserCash},
		{Code: TransferUserTransfer, From: AccountTypeUserAccount, To: AccountTypeUserAccount},
	}
}
