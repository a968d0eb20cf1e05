package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an atomic, balanced set of entries representing one
// economic event. Immutable after posting; corrections are made by
// posting new reversing transactions.
type Transaction struct {
	ID        string
	Timestamp time.Time
	Entries   []Entry // ascending Order
}

// Totals returns the exact debit and credit sums over the transaction's
// entries. For any transaction that passed posting the two are equal.
func (t Transaction) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range t.Entries {
		switch e.Side {
		case SideDebit:
			debit = debit.Add(e.Amount)
		case SideCredit:
			credit = credit.Add(e.Amount)
		}
	}
	return debit, credit
}

// Balanced reports whether debits equal credits exactly.
func (t Transaction) Balanced() bool {
	debit, credit := t.Totals()
	return debit.Equal(credit)
}
