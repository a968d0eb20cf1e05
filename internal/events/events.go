// Package events defines the posted-transaction event surface. Publishing
// is best-effort: a failed publish never fails the post that produced it.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
)

// Publisher delivers ledger events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event TransactionPosted) error
}

// PostedLine is one entry of a posted transaction as carried on the wire.
type PostedLine struct {
	AccountID string          `json:"account_id"`
	Side      model.Side      `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Order     int             `json:"order"`
}

// TransactionPosted is emitted after a transaction commits.
type TransactionPosted struct {
	TransactionID string          `json:"transaction_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Total         decimal.Decimal `json:"total"` // debit total == credit total
	Lines         []PostedLine    `json:"lines"`
}

// FromTransaction builds the event payload for a committed transaction.
func FromTransaction(tx model.Transaction) TransactionPosted {
	debit, _ := tx.Totals()
	lines := make([]PostedLine, len(tx.Entries))
	for i, e := range tx.Entries {
		lines[i] = PostedLine{AccountID: e.AccountID, Side: e.Side, Amount: e.Amount, Order: e.Order}
	}
	return TransactionPosted{
		TransactionID: tx.ID,
		Timestamp:     tx.Timestamp,
		Total:         debit,
		Lines:         lines,
	}
}
