package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/config"
)

func newInitCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default tally.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(absDir, backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", config.BackendMemory, "storage backend (memory|postgres|mongo)")

	return cmd
}

func runInit(dir, backend string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	cfg := config.Default()
	cfg.Storage.Backend = backend

	path := filepath.Join(dir, "tally.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Initialized tally ledger at %s (backend: %s)\n", path, backend)
	return nil
}
