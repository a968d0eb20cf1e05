// Package money provides exact decimal amount handling for ledger values.
// Amounts are decimal.Decimal, never binary floating point: the ledger's
// central invariant is an exact equality over sums of amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits carried by ledger amounts.
const Scale = 2

// Zero is the zero amount.
var Zero = decimal.Zero

// Parse converts a string like "25000.00" into an amount, rejecting values
// with more than Scale fraction digits.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if !ValidScale(d) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimal places", s, Scale)
	}
	return d, nil
}

// ValidScale reports whether d carries at most Scale fraction digits.
func ValidScale(d decimal.Decimal) bool {
	shifted := d.Shift(Scale)
	return shifted.Equal(shifted.Floor())
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// Sum adds amounts exactly.
func Sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

// Format renders an amount with exactly Scale fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
