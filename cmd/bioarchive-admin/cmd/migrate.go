package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bioarchive/api/pkg/migrations"
)

var flagMigrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&flagMigrationsDir, "dir", "migrations", "Migrations directory")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return migrations.NewRunner(db.DB, flagMigrationsDir).Up(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return migrations.NewRunner(db.DB, flagMigrationsDir).Down(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runner := migrations.NewRunner(db.DB, flagMigrationsDir)
		if err := runner.EnsureMigrationTable(cmd.Context()); err != nil {
			return err
		}

		applied, err := runner.GetAppliedMigrations(cmd.Context())
		if err != nil {
			return err
		}
		pending, err := runner.GetPendingMigrations(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Applied (%d):\n", len(applied))
		for _, rec := range applied {
			fmt.Printf("  %s  %s\n", rec.Version, rec.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Pending (%d):\n", len(pending))
		for _, v := range pending {
			fmt.Printf("  %s\n", v)
		}
		return nil
	},
}
