// Package chart seeds a standard chart of accounts through the ledger
// engine.
package chart

import (
	"context"
	"errors"
	"fmt"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/storage"
)

// Spec names one account of the standard catalog.
type Spec struct {
	Name string
	Type model.AccountType
}

// Standard returns the fixed standard catalog. Normal balances follow the
// account type convention; Accounts Payable is a credit-normal liability.
func Standard() []Spec {
	return []Spec{
		{Name: "Cash", Type: model.AccountTypeAsset},
		{Name: "Accounts Receivable", Type: model.AccountTypeAsset},
		{Name: "Supplies", Type: model.AccountTypeAsset},
		{Name: "Land", Type: model.AccountTypeAsset},
		{Name: "Equipment", Type: model.AccountTypeAsset},
		{Name: "Notes Payable", Type: model.AccountTypeLiability},
		{Name: "Accounts Payable", Type: model.AccountTypeLiability},
		{Name: "Salaries Payable", Type: model.AccountTypeLiability},
		{Name: "Interest Payable", Type: model.AccountTypeLiability},
		{Name: "Taxes Payable", Type: model.AccountTypeLiability},
		{Name: "Service Revenue", Type: model.AccountTypeRevenue},
		{Name: "Sales Revenue", Type: model.AccountTypeRevenue},
		{Name: "Common Stock", Type: model.AccountTypeEquity},
		{Name: "Retained Earnings", Type: model.AccountTypeEquity},
	}
}

// Seed creates the standard catalog via the engine. Seeding is
// idempotent: accounts whose name already exists are skipped. Returns
// the accounts created by this call.
func Seed(ctx context.Context, engine *ledger.Engine) ([]model.Account, error) {
	var created []model.Account
	for _, spec := range Standard() {
		account, err := engine.CreateAccount(ctx, ledger.CreateAccountParams{
			Name: spec.Name,
			Type: spec.Type,
		})
		if errors.Is(err, storage.ErrDuplicateName) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seeding %q: %w", spec.Name, err)
		}
		created = append(created, account)
	}
	return created, nil
}
