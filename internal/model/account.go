package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the five recognized account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the side on which increases to accounts of type t
// are conventionally recorded: debit for asset and expense accounts,
// credit for the rest.
func NormalBalance(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Account is a named ledger bucket accumulating entries.
// Immutable after creation except for name correction.
type Account struct {
	ID            string
	Name          string
	Type          AccountType
	NormalBalance Side
}
