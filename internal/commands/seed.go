package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/chart"
)

func newSeedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the standard chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cleanup, err := openEngine(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := chart.Seed(cmd.Context(), engine)
			if err != nil {
				return err
			}
			skipped := len(chart.Standard()) - len(created)
			fmt.Printf("Seeded %d accounts (%d already existed)\n", len(created), skipped)
			return nil
		},
	}
}
