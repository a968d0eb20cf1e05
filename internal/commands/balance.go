package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/money"
)

func newBalanceCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-name>",
		Short: "Show an account balance relative to its normal side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			account, err := engine.AccountByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			balance, err := engine.AccountBalance(cmd.Context(), account.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s-normal)\n", account.Name, money.Format(balance), account.NormalBalance)
			return nil
		},
	}
}
