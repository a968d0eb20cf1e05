// Package commands wires the tally CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/buildinfo"
	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/events/kafka"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/storage"
	"github.com/tally-dev/tally/internal/storage/memory"
	"github.com/tally-dev/tally/internal/storage/mongo"
	"github.com/tally-dev/tally/internal/storage/postgres"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Double-entry ledger engine",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Credentials may live in a .env next to tally.yaml.
			_ = godotenv.Load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tally.yaml", "path to tally.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAccountsCommand(&configPath))
	rootCmd.AddCommand(newSeedCommand(&configPath))
	rootCmd.AddCommand(newPostCommand(&configPath))
	rootCmd.AddCommand(newShowCommand(&configPath))
	rootCmd.AddCommand(newBalanceCommand(&configPath))
	rootCmd.AddCommand(newDemoCommand())

	return rootCmd
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// openEngine builds an Engine from tally.yaml: storage backend, optional
// event publisher, logger. The returned func releases backend resources.
func openEngine(ctx context.Context, configPath string) (*ledger.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   storage.Store
		cleanup = func() {}
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		store = pg
		cleanup = func() { _ = pg.Close() }
	case config.BackendMongo:
		mg, err := mongo.Open(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		store = mg
		cleanup = func() { _ = mg.Close(ctx) }
	}

	opts := []ledger.Option{ledger.WithLogger(newLogger())}
	if cfg.Events.Enabled() {
		pub := kafka.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		opts = append(opts, ledger.WithPublisher(pub))
		prev := cleanup
		cleanup = func() {
			_ = pub.Close()
			prev()
		}
	}

	return ledger.NewEngine(store, opts...), cleanup, nil
}
