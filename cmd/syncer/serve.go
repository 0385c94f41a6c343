package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"creator_sync/internal/api"
	"creator_sync/internal/scheduler"
	"creator_sync/internal/storage/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API and the auto-sync scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(appOptions{publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := postgres.Migrate(a.db)
	if err != nil {
		return err
	}
	a.logger.Info("database schema ready", "version", version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(api.NewHandler(a.sync, a.recorder, a.siteCfg, a.cfg.Sync.RunTimeout, a.logger), a.logger)
	srv := api.NewServer(a.cfg.Server.Addr, router, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)
	sched := scheduler.NewScheduler(a.sync, a.siteCfg, a.cfg.Sync.CheckInterval, a.cfg.Sync.RunTimeout, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", "cause", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("stopped")
	return nil
}
