package model

import "github.com/shopspring/decimal"

// Side is the debit or credit side of an entry.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Valid reports whether s is debit or credit.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Entry is one debit or credit line within a transaction, affecting
// exactly one account. Entries exist only as part of a posted
// transaction and are immutable after creation.
type Entry struct {
	ID            string
	TransactionID string
	AccountID     string
	Side          Side
	Amount        decimal.Decimal // strictly positive
	Order         int             // 1-based position within the transaction
	Description   string
}
