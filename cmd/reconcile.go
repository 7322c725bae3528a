package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var reconcileTimeout time.Duration

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass and print the report",
	Long: `Backfill votes for completed payments that have none and re-check
stale pending payments with their processor.

The serve command does this on a schedule; this one is for operators
repairing state by hand or from cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.reconciler.RunOnce(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 5*time.Minute, "upper bound for the whole pass")
}
