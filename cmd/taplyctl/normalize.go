package main

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taply/backend/internal/profile"
	"github.com/taply/backend/internal/storage"
)

var normalizeDryRun bool

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeDryRun, "dry-run", false, "report what would change without writing")
	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rewrite stored profiles in normalized form",
	Long:  "Loads every account, applies the profile normalizer and saves the ones that changed. Running it twice changes nothing the second time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store storage.AccountStore) error {
			changed, total, err := normalizeAccounts(cmd.Context(), store, normalizeDryRun)
			if err != nil {
				return err
			}
			verb := "updated"
			if normalizeDryRun {
				verb = "would update"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d accounts\n", verb, changed, total)
			return nil
		})
	},
}

func normalizeAccounts(ctx context.Context, store storage.AccountStore, dryRun bool) (changed, total int, err error) {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list accounts: %w", err)
	}
	for _, acc := range accounts {
		before, err := json.Marshal(acc.Profile)
		if err != nil {
			return changed, len(accounts), err
		}
		acc.Profile = profile.Normalize(acc.Profile)
		after, err := json.Marshal(acc.Profile)
		if err != nil {
			return changed, len(accounts), err
		}
		if string(before) == string(after) {
			continue
		}
		changed++
		log.WithField("username", acc.Username).Debug("profile needs normalizing")
		if dryRun {
			continue
		}
		if err := store.SaveAccount(ctx, acc); err != nil {
			return changed, len(accounts), fmt.Errorf("save %s: %w", acc.Username, err)
		}
	}
	return changed, len(accounts), nil
}
