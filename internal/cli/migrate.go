package cli

import (
	"github.com/spf13/cobra"
	"github.com/yakoovad/tabletop-hub/internal/db"
	"go.uber.org/zap"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, l, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = l.Sync() }()

		if err = db.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		l.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, l, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = l.Sync() }()

		if err = db.MigrateDown(cfg.DatabaseURL, migrateDownSteps); err != nil {
			return err
		}
		l.Info("migrations rolled back", zap.Int("steps", migrateDownSteps))
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
