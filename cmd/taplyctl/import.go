package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taply/backend/internal/storage"
)

var importFile string

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "users.json to import")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a users.json dataset into the configured store",
	Long:  "Reads a file-backend users.json and creates each account in the configured store. Accounts whose id, email or username already exist are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openImportSource(importFile)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(dst storage.AccountStore) error {
			imported, skipped, err := importAccounts(cmd.Context(), src, dst)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d accounts, skipped %d\n", imported, skipped)
			return nil
		})
	},
}

// openImportSource opens path as a users file. Unlike the file backend it
// refuses a missing or unparseable file instead of reading it as empty.
func openImportSource(path string) (*storage.FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc struct {
		Users *[]json.RawMessage `json:"users"`
	}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Users == nil {
		return nil, fmt.Errorf("parse %s: no users array", path)
	}
	return storage.NewFileStoreAt(path)
}

func importAccounts(ctx context.Context, src, dst storage.AccountStore) (imported, skipped int, err error) {
	accounts, err := src.ListAccounts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read source: %w", err)
	}
	for _, acc := range accounts {
		err := dst.CreateAccount(ctx, acc)
		switch {
		case err == nil:
			imported++
		case errors.Is(err, storage.ErrDuplicate):
			skipped++
			log.WithFields(log.Fields{"id": acc.ID, "username": acc.Username}).Info("already present, skipped")
		default:
			return imported, skipped, fmt.Errorf("create %s: %w", acc.Username, err)
		}
	}
	return imported, skipped, nil
}
