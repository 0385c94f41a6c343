package main

import (
	"github.com/spf13/cobra"

	"creator_sync/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := postgres.Migrate(a.db)
	if err != nil {
		return err
	}
	a.logger.Info("migrations applied", "version", version)
	return nil
}
