package main

import (
	"github.com/spf13/cobra"

	"creator_sync/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent sync runs, newest first",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", history.DefaultListLimit, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.recorder.ListRecent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), runs)
}
