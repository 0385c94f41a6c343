package main

import (
	"errors"

	"github.com/spf13/cobra"

	"creator_sync/internal/notion"
)

var (
	testAPIKey     string
	testDatabaseID string
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that the Notion credentials can read the database",
	Long: `Retrieve the Notion database and print its title. Flags override the stored
configuration; omitted values fall back to it.`,
	RunE: runTestConnection,
}

func init() {
	testConnectionCmd.Flags().StringVar(&testAPIKey, "api-key", "", "Notion integration token")
	testConnectionCmd.Flags().StringVar(&testDatabaseID, "database-id", "", "Notion database id")
	rootCmd.AddCommand(testConnectionCmd)
}

func runTestConnection(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.sync.TestConnection(cmd.Context(), notion.Credentials{APIKey: testAPIKey, DatabaseID: testDatabaseID})
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Message)
	}
	return nil
}
