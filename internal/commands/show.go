package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
)

func newShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a posted transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			tx, err := engine.Transaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTransaction(cmd.Context(), engine, tx)
		},
	}
}

// printTransaction renders a transaction ledger-style: debits in the left
// amount column, credits indented into the right column.
func printTransaction(ctx context.Context, engine *ledger.Engine, tx model.Transaction) error {
	fmt.Printf("%s  %s\n", tx.ID, tx.Timestamp.Format("2006-01-02 15:04:05"))
	for _, e := range tx.Entries {
		account, err := engine.Account(ctx, e.AccountID)
		if err != nil {
			return err
		}
		switch e.Side {
		case model.SideDebit:
			fmt.Printf("  %2d  %-28s %12s\n", e.Order, account.Name, money.Format(e.Amount))
		case model.SideCredit:
			fmt.Printf("  %2d      %-28s %16s\n", e.Order, account.Name, money.Format(e.Amount))
		}
	}
	debit, credit := tx.Totals()
	fmt.Printf("      totals: %s debit / %s credit\n", money.Format(debit), money.Format(credit))
	return nil
}
