package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input: empty name, unrecognized type
// or side, non-positive amount, fewer than two entries. Fix the input and
// retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnknownAccountError reports a line referencing an account that does not
// exist in storage.
type UnknownAccountError struct {
	AccountID string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %s", e.AccountID)
}

// UnbalancedTransactionError reports a candidate transaction whose debit
// and credit totals differ. The engine never invents a plug entry to
// absorb the difference.
type UnbalancedTransactionError struct {
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

func (e *UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("unbalanced transaction: debits (%s) != credits (%s)",
		e.DebitTotal.StringFixed(2), e.CreditTotal.StringFixed(2))
}
