package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
)

func newPostCommand(configPath *string) *cobra.Command {
	var debits, credits []string
	var description string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced transaction",
		Long: `Post a balanced transaction. Each --debit and --credit takes
"<account-name>=<amount>". Debits are ordered before credits, each in
flag order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			var lines []ledger.Line
			for _, spec := range debits {
				line, err := parseLine(cmd, engine, spec, model.SideDebit, description)
				if err != nil {
					return err
				}
				lines = append(lines, line)
			}
			for _, spec := range credits {
				line, err := parseLine(cmd, engine, spec, model.SideCredit, description)
				if err != nil {
					return err
				}
				lines = append(lines, line)
			}

			tx, err := engine.PostTransaction(cmd.Context(), ledger.PostParams{Lines: lines})
			if err != nil {
				return err
			}

			fmt.Printf("Posted transaction %s\n", tx.ID)
			return printTransaction(cmd.Context(), engine, tx)
		},
	}

	cmd.Flags().StringArrayVar(&debits, "debit", nil, `debit line "<account-name>=<amount>" (repeatable)`)
	cmd.Flags().StringArrayVar(&credits, "credit", nil, `credit line "<account-name>=<amount>" (repeatable)`)
	cmd.Flags().StringVar(&description, "desc", "", "entry description")

	return cmd
}

func parseLine(cmd *cobra.Command, engine *ledger.Engine, spec string, side model.Side, description string) (ledger.Line, error) {
	name, amountStr, ok := strings.Cut(spec, "=")
	if !ok {
		return ledger.Line{}, fmt.Errorf("malformed line %q: want <account-name>=<amount>", spec)
	}

	account, err := engine.AccountByName(cmd.Context(), name)
	if err != nil {
		return ledger.Line{}, err
	}

	amount, err := money.Parse(amountStr)
	if err != nil {
		return ledger.Line{}, err
	}

	return ledger.Line{
		AccountID:   account.ID,
		Side:        side,
		Amount:      amount,
		Description: description,
	}, nil
}
