package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"creator_sync/internal/domain"
)

var publishResult bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single sync and print the result",
	Long: `Run a single reconciliation between the creators table and Notion using the
stored sync configuration. Ctrl-C cancels the run; the history row records the
partial counts.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&publishResult, "publish", false, "publish the run result to rabbitmq when enabled in config")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{publish: publishResult})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
	defer cancel()

	result := a.sync.RunSync(ctx)
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if result.Status != domain.ResultCompleted {
		return fmt.Errorf("sync %s: %s", result.Status, result.Message)
	}
	return nil
}
