package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"creator_sync/internal/config"
	"creator_sync/internal/history"
	"creator_sync/internal/notion"
	"creator_sync/internal/publisher"
	"creator_sync/internal/service"
	"creator_sync/internal/storage/postgres"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "syncer",
	Short: "Two-way sync of creator listings between Postgres and a Notion database",
	Long: `syncer reconciles the creators table with a Notion database.

Run "serve" for the admin API plus the auto-sync scheduler, or "sync" for a
single run from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
}

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	siteCfg   *postgres.SiteConfigStore
	recorder  *history.Recorder
	sync      *service.SyncService
	publisher *publisher.RabbitMQ
}

type appOptions struct {
	publish bool
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")

	a := &app{cfg: cfg, logger: logger, db: db}

	txManager := postgres.NewTransactionManager(db)
	creatorStore := postgres.NewCreatorStore(db)
	a.siteCfg = postgres.NewSiteConfigStore(db, txManager)
	a.recorder = history.NewRecorder(postgres.NewSyncHistoryStore(db), logger)

	notionClient := notion.New(notionConfig(cfg.Notion), logger)

	var pub service.Publisher
	if opts.publish && cfg.RabbitMQ.Enabled {
		a.publisher, err = publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		pub = a.publisher
	}

	a.sync = service.NewSyncService(creatorStore, a.siteCfg, a.recorder, postgres.NewRunLock(db), notionClient, pub, logger, cfg.Sync)

	return a, nil
}

func notionConfig(c config.NotionConfig) notion.Config {
	return notion.Config{
		BaseURL:        c.BaseURL,
		Version:        c.Version,
		PageSize:       c.PageSize,
		MaxPages:       c.MaxPages,
		Timeout:        c.Timeout,
		RateLimit:      c.RateLimit,
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
