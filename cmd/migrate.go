package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/votepay/internal/config"
	"github.com/Shivanand-hulikatti/votepay/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and seed payment settings",
	Long: `Create or update every table and index. Safe to run repeatedly.

The settings row is seeded with payments.default_commission_rate only when
it does not exist yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if _, err := cfg.Payments.CommissionRate(); err != nil {
			return fmt.Errorf("payments.default_commission_rate: %w", err)
		}

		ctx := context.Background()
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, cfg.Payments.DefaultCommissionRate); err != nil {
			return err
		}
		slog.Info("schema applied", "database", cfg.Database.Name)
		return nil
	},
}
