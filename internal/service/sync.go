package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"creator_sync/internal/config"
	"creator_sync/internal/domain"
	"creator_sync/internal/mapper"
	"creator_sync/internal/notion"
)

const (
	msgDisabled       = "Notion sync is disabled"
	msgMissingConfig  = "Notion API key and database ID are required"
	msgAlreadyRunning = "Sync is already running"
	msgCancelled      = "Sync cancelled"

	// finalizeTimeout bounds the writes that close a run after its context
	// has been cancelled.
	finalizeTimeout = 10 * time.Second
)

// SyncService reconciles creators between the record store and Notion.
type SyncService struct {
	creators  CreatorStore
	config    ConfigStore
	history   HistoryRecorder
	lock      RunLock
	notion    NotionClient
	publisher Publisher
	logger    *slog.Logger
	cfg       config.SyncConfig

	guard *semaphore.Weighted
	now   func() time.Time
}

func NewSyncService(
	creators CreatorStore,
	configStore ConfigStore,
	history HistoryRecorder,
	lock RunLock,
	notionClient NotionClient,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		creators:  creators,
		config:    configStore,
		history:   history,
		lock:      lock,
		notion:    notionClient,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		cfg:       cfg,
		guard:     semaphore.NewWeighted(1),
		now:       time.Now,
	}
}

// RunSync performs one reconciliation run. It never returns an error: every
// outcome, including failures, is described by the result.
func (s *SyncService) RunSync(ctx context.Context) domain.SyncResult {
	if !s.guard.TryAcquire(1) {
		s.logger.Info("sync skipped, another run is in progress")
		return domain.SyncResult{Status: domain.ResultAlreadyRunning, Message: msgAlreadyRunning}
	}
	defer s.guard.Release(1)

	cfg, err := s.config.GetSyncConfig(ctx)
	if err != nil {
		s.logger.Error("failed to load sync config", "error", err)
		return domain.SyncResult{
			Status:  domain.ResultFailed,
			Message: fmt.Sprintf("Failed to load sync configuration: %v", err),
		}
	}

	if !cfg.Enabled {
		return domain.SyncResult{Status: domain.ResultDisabled, Message: msgDisabled}
	}

	creds := notion.Credentials{APIKey: cfg.NotionAPIKey, DatabaseID: cfg.NotionDatabaseID}
	if !creds.Valid() {
		return domain.SyncResult{Status: domain.ResultInvalidConfig, Message: msgMissingConfig}
	}

	release, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("failed to acquire sync lock", "error", err)
		return domain.SyncResult{
			Status:  domain.ResultFailed,
			Message: fmt.Sprintf("Failed to check for running syncs: %v", err),
		}
	}
	if !acquired {
		s.logger.Info("sync skipped, another process holds the sync lock")
		return domain.SyncResult{Status: domain.ResultAlreadyRunning, Message: msgAlreadyRunning}
	}
	defer func() {
		if err := release(); err != nil {
			s.logger.Warn("failed to release sync lock", "error", err)
		}
	}()

	// Rows left in progress by a crashed process block new runs until they
	// are older than StaleRunAfter.
	active, err := s.history.HasActiveRun(ctx, s.cfg.StaleRunAfter)
	if err != nil {
		s.logger.Error("failed to check for active sync runs", "error", err)
		return domain.SyncResult{
			Status:  domain.ResultFailed,
			Message: fmt.Sprintf("Failed to check for running syncs: %v", err),
		}
	}
	if active {
		s.logger.Info("sync skipped, a run is recorded as in progress")
		return domain.SyncResult{Status: domain.ResultAlreadyRunning, Message: msgAlreadyRunning}
	}

	runID, err := s.history.StartRun(ctx)
	if err != nil {
		s.logger.Error("failed to start sync run", "error", err)
		return domain.SyncResult{
			Status:  domain.ResultFailed,
			Message: fmt.Sprintf("Failed to start sync run: %v", err),
		}
	}

	result := s.runRecovered(ctx, runID, creds)
	s.publish(ctx, result)
	return result
}

func (s *SyncService) runRecovered(ctx context.Context, runID string, creds notion.Credentials) (result domain.SyncResult) {
	logger := s.logger.With("run_id", runID)

	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("Sync failed: %v", p)
			logger.Error("sync run panicked", "panic", p)
			result = s.failRun(ctx, logger, runID, msg)
		}
	}()

	return s.reconcile(ctx, logger, runID, creds)
}

func (s *SyncService) reconcile(ctx context.Context, logger *slog.Logger, runID string, creds notion.Credentials) domain.SyncResult {
	startTime := s.now()
	logger.Info("starting sync")

	stats := domain.SyncStats{Errors: []string{}}

	creators, err := s.creators.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return s.cancelRun(ctx, logger, runID, stats)
		}
		return s.failRun(ctx, logger, runID, fmt.Sprintf("Failed to fetch creators: %v", err))
	}

	// A zero page size uses the client's configured default.
	pages, err := s.notion.QueryDatabase(ctx, creds, 0)
	if err != nil {
		if ctx.Err() != nil {
			return s.cancelRun(ctx, logger, runID, stats)
		}
		return s.failRun(ctx, logger, runID, fmt.Sprintf("Failed to query Notion database: %v", err))
	}

	logger.Info("loaded both sides", "creators", len(creators), "pages", len(pages))

	mappedAt := s.now().UTC()
	mapped := make([]domain.Creator, 0, len(pages))
	for _, page := range pages {
		c, err := mapper.FromPage(page, mappedAt)
		if err != nil {
			stats.AddError(fmt.Sprintf("Failed to map Notion page %s: %v", page.ID, err))
			continue
		}
		mapped = append(mapped, c)
	}

	inStore := make(map[string]struct{}, len(creators))
	for _, c := range creators {
		inStore[c.ID] = struct{}{}
	}
	inNotion := make(map[string]struct{}, len(mapped))
	for _, c := range mapped {
		inNotion[c.ID] = struct{}{}
	}

	// Notion -> store.
	for i := range mapped {
		if ctx.Err() != nil {
			return s.cancelRun(ctx, logger, runID, stats)
		}

		c := &mapped[i]
		if _, exists := inStore[c.ID]; exists {
			if err := s.creators.Update(ctx, c); err != nil {
				logger.Warn("failed to update creator", "creator_id", c.ID, "error", err)
				stats.AddError(fmt.Sprintf("Failed to update creator %s: %v", c.ID, err))
				continue
			}
			stats.Updated++
			continue
		}

		if err := s.creators.Insert(ctx, c); err != nil {
			logger.Warn("failed to insert creator", "creator_id", c.ID, "error", err)
			stats.AddError(fmt.Sprintf("Failed to insert creator %s: %v", c.ID, err))
			continue
		}
		stats.Added++
	}

	// Store -> Notion.
	for i := range creators {
		c := &creators[i]
		if _, exists := inNotion[c.ID]; exists {
			continue
		}
		if ctx.Err() != nil {
			return s.cancelRun(ctx, logger, runID, stats)
		}

		if _, err := s.notion.CreatePage(ctx, creds, mapper.ToProperties(*c)); err != nil {
			logger.Warn("failed to create notion page", "creator_id", c.ID, "error", err)
			stats.AddError(fmt.Sprintf("Failed to create Notion page for creator %s: %v", c.ID, err))
			continue
		}
		// Pages created here share the Added counter with store inserts from
		// the first pass, so Added mixes both directions.
		stats.Added++
	}

	if ctx.Err() != nil {
		return s.cancelRun(ctx, logger, runID, stats)
	}

	completedAt := s.now()
	if err := s.config.SetLastSyncedAt(ctx, completedAt); err != nil {
		logger.Warn("failed to update last synced time", "error", err)
	}

	message := fmt.Sprintf("Sync completed successfully. Added: %d, Updated: %d, Failed: %d",
		stats.Added, stats.Updated, stats.Failed)

	if err := s.history.CompleteRun(ctx, runID, stats, message, true); err != nil {
		logger.Error("failed to record sync completion", "error", err)
		return s.failRun(ctx, logger, runID, fmt.Sprintf("Failed to record sync completion: %v", err))
	}

	logger.Info("sync completed",
		"added", stats.Added,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"duration", completedAt.Sub(startTime),
	)

	return domain.SyncResult{
		Success: true,
		Status:  domain.ResultCompleted,
		Message: message,
		RunID:   runID,
		Stats:   &stats,
	}
}

func (s *SyncService) failRun(ctx context.Context, logger *slog.Logger, runID, message string) domain.SyncResult {
	logger.Error("sync failed", "message", message)

	finalCtx, cancel := finalizeContext(ctx)
	defer cancel()

	if err := s.history.FailRun(finalCtx, runID, message); err != nil {
		logger.Error("failed to record sync failure", "error", err)
	}

	return domain.SyncResult{
		Status:  domain.ResultFailed,
		Message: message,
		RunID:   runID,
		Stats:   &domain.SyncStats{Failed: 1, Errors: []string{message}},
	}
}

func (s *SyncService) cancelRun(ctx context.Context, logger *slog.Logger, runID string, stats domain.SyncStats) domain.SyncResult {
	logger.Warn("sync cancelled",
		"added", stats.Added,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"cause", context.Cause(ctx),
	)

	finalCtx, cancel := finalizeContext(ctx)
	defer cancel()

	if err := s.history.AbortRun(finalCtx, runID, stats, msgCancelled); err != nil {
		logger.Error("failed to record sync cancellation", "error", err)
	}

	stats.Errors = append(stats.Errors, msgCancelled)
	stats.Failed++
	return domain.SyncResult{
		Status:  domain.ResultCancelled,
		Message: msgCancelled,
		RunID:   runID,
		Stats:   &stats,
	}
}

func (s *SyncService) publish(ctx context.Context, result domain.SyncResult) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := finalizeContext(ctx)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, result); err != nil {
		s.logger.Warn("failed to publish sync result", "run_id", result.RunID, "error", err)
	}
}

// TestConnection checks Notion credentials without mutating anything. Empty
// fields fall back to the stored configuration.
func (s *SyncService) TestConnection(ctx context.Context, creds notion.Credentials) domain.ConnectionResult {
	if !creds.Valid() {
		cfg, err := s.config.GetSyncConfig(ctx)
		if err != nil {
			s.logger.Warn("failed to load sync config for connection test", "error", err)
		} else {
			if creds.APIKey == "" {
				creds.APIKey = cfg.NotionAPIKey
			}
			if creds.DatabaseID == "" {
				creds.DatabaseID = cfg.NotionDatabaseID
			}
		}
	}

	return s.notion.TestConnection(ctx, creds)
}

func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}
