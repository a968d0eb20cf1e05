package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
	"github.com/tally-dev/tally/internal/storage/memory"
)

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the raise-cash-from-equity demo against an in-memory ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine := ledger.NewEngine(memory.NewStore(), ledger.WithLogger(newLogger()))

			cash, err := engine.CreateAccount(ctx, ledger.CreateAccountParams{Name: "Cash", Type: model.AccountTypeAsset})
			if err != nil {
				return err
			}
			stock, err := engine.CreateAccount(ctx, ledger.CreateAccountParams{Name: "Common Stock", Type: model.AccountTypeEquity})
			if err != nil {
				return err
			}

			amount, err := money.Parse("25000.00")
			if err != nil {
				return err
			}

			tx, err := engine.PostTransaction(ctx, ledger.PostParams{
				Lines: []ledger.Line{
					{AccountID: cash.ID, Side: model.SideDebit, Amount: amount, Description: "raise cash from equity"},
					{AccountID: stock.ID, Side: model.SideCredit, Amount: amount, Description: "raise cash from equity"},
				},
			})
			if err != nil {
				return err
			}

			if err := printTransaction(ctx, engine, tx); err != nil {
				return err
			}

			balance, err := engine.AccountBalance(ctx, cash.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Cash balance: %s\n", money.Format(balance))
			return nil
		},
	}
}
