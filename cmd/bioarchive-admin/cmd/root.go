// Package cmd implements the bioarchive-admin subcommands.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/pkg/logger"
)

var version string

var rootCmd = &cobra.Command{
	Use:   "bioarchive-admin",
	Short: "BioArchive platform administration CLI",
	Long: `bioarchive-admin manages a BioArchive deployment directly against
its database.

It provides commands to run schema migrations, create accounts and
roles, and wire role grants. Connection settings come from the same
environment variables the server reads (DB_HOST, DB_PORT, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(listUsersCmd)
	rootCmd.AddCommand(createRoleCmd)
	rootCmd.AddCommand(listRolesCmd)
	rootCmd.AddCommand(grantRoleCmd)
	rootCmd.AddCommand(revokeRoleCmd)
}

// openDB loads the environment configuration and connects to the
// database. Callers must Close the returned handle.
func openDB() (*config.Config, *postgres.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

// quietLogger keeps service log output away from CLI stdout.
func quietLogger() *logger.Logger {
	return logger.NewNop()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bioarchive-admin version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
