package scheduler

import (
	"context"
	"log/slog"
	"time"

	"creator_sync/internal/domain"
)

// Syncer runs a single reconciliation.
type Syncer interface {
	RunSync(ctx context.Context) domain.SyncResult
}

// ConfigSource provides the stored auto-sync settings.
type ConfigSource interface {
	GetSyncConfig(ctx context.Context) (domain.SyncConfig, error)
}

// Scheduler wakes up every check interval and triggers a sync when the stored
// configuration says one is due.
type Scheduler struct {
	syncer     Syncer
	configs    ConfigSource
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewScheduler(syncer Syncer, configs ConfigSource, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:     syncer,
		configs:    configs,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
		now:        time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	cfg, err := s.configs.GetSyncConfig(ctx)
	if err != nil {
		s.logger.Error("failed to load sync config", "error", err)
		return
	}

	if !cfg.Due(s.now()) {
		s.logger.Debug("auto sync not due",
			"enabled", cfg.Enabled,
			"auto_sync", cfg.AutoSync,
			"last_synced_at", cfg.LastSyncedAt,
		)
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	result := s.syncer.RunSync(syncCtx)
	if !result.Success {
		s.logger.Warn("scheduled sync did not succeed",
			"status", result.Status,
			"message", result.Message,
		)
	}
}
