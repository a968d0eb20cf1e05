package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
)

func newAccountsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}

	cmd.AddCommand(newAccountsListCommand(configPath))
	cmd.AddCommand(newAccountsCreateCommand(configPath))
	cmd.AddCommand(newAccountsRenameCommand(configPath))

	return cmd
}

func newAccountsListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			accts, err := engine.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range accts {
				fmt.Printf("%-36s  %-24s  %-9s  %s-normal\n", a.ID, a.Name, a.Type, a.NormalBalance)
			}
			return nil
		},
	}
}

func newAccountsCreateCommand(configPath *string) *cobra.Command {
	var name, accountType, normal string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			account, err := engine.CreateAccount(cmd.Context(), ledger.CreateAccountParams{
				Name:          name,
				Type:          model.AccountType(accountType),
				NormalBalance: model.Side(normal),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created account %s (%s, %s, %s-normal)\n", account.ID, account.Name, account.Type, account.NormalBalance)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&accountType, "type", "", "account type: asset|liability|equity|revenue|expense (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&normal, "normal", "", "override the conventional normal balance (debit|credit)")

	return cmd
}

func newAccountsRenameCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <account-name> <new-name>",
		Short: "Correct an account name",
		Args:  cobra.ExactArgs(2),
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
			if err := engine.RenameAccount(cmd.Context(), account.ID, args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed %q to %q\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}
