package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taply/backend/internal/config"
	"github.com/taply/backend/internal/storage"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "taplyctl",
	Short: "Maintenance commands for a Taply deployment",
	Long:  `taplyctl operates on the account store the server is configured to use (file, Supabase, Postgres or MongoDB), read from the same environment and .env file.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		cfg.ConfigureLogging()
	},
	SilenceUsage: true,
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(storage.AccountStore) error) error {
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := storage.Open(openCtx, cfg.Storage())
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}()
	return fn(store)
}
