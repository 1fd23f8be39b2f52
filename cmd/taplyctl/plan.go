package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/storage"
)

var (
	planUsername string
	planName     string
)

func init() {
	setPlanCmd.Flags().StringVarP(&planUsername, "username", "u", "", "account username")
	setPlanCmd.Flags().StringVarP(&planName, "plan", "p", "", "free or premium")
	setPlanCmd.MarkFlagRequired("username")
	setPlanCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(setPlanCmd)
}

var setPlanCmd = &cobra.Command{
	Use:   "set-plan",
	Short: "Switch an account between the free and premium plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store storage.AccountStore) error {
			if err := setPlan(cmd.Context(), store, planUsername, planName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now on the %s plan\n", planUsername, planName)
			return nil
		})
	},
}

func setPlan(ctx context.Context, store storage.AccountStore, username, plan string) error {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if plan != models.PlanFree && plan != models.PlanPremium {
		return fmt.Errorf("unknown plan %q", plan)
	}
	acc, err := store.FindAccount(ctx, storage.ByUsername(username))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no account named %q", username)
	}
	if err != nil {
		return err
	}
	acc.Plan = plan
	return store.SaveAccount(ctx, acc)
}
