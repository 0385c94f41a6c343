// Package history keeps the append-only audit trail of reconciliation runs.
// A run row is inserted as in_progress and finalised exactly once.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"creator_sync/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Store interface {
	Insert(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error)
	HasActiveRun(ctx context.Context, since time.Time) (bool, error)
}

type Recorder struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With("component", "history"),
	}
}

// StartRun inserts an in_progress run and returns its id.
func (r *Recorder) StartRun(ctx context.Context) (string, error) {
	run := &domain.SyncRun{
		ID:        r.newID(),
		StartedAt: r.now().UTC(),
		Status:    domain.RunInProgress,
		Stats:     domain.SyncStats{Errors: []string{}},
	}
	if err := r.store.Insert(ctx, run); err != nil {
		return "", fmt.Errorf("insert sync run: %w", err)
	}

	r.logger.Debug("sync run started", "run_id", run.ID)
	return run.ID, nil
}

// CompleteRun finalises a run with its stats.
func (r *Recorder) CompleteRun(ctx context.Context, id string, stats domain.SyncStats, message string, success bool) error {
	status := domain.RunCompleted
	if !success {
		status = domain.RunFailed
	}
	return r.finish(ctx, id, status, success, stats, message)
}

// FailRun marks a run failed with a single error.
func (r *Recorder) FailRun(ctx context.Context, id, message string) error {
	stats := domain.SyncStats{Failed: 1, Errors: []string{message}}
	return r.finish(ctx, id, domain.RunFailed, false, stats, message)
}

// AbortRun marks a run failed while keeping the partial stats gathered so far.
func (r *Recorder) AbortRun(ctx context.Context, id string, stats domain.SyncStats, message string) error {
	stats.Errors = append(append([]string{}, stats.Errors...), message)
	stats.Failed++
	return r.finish(ctx, id, domain.RunFailed, false, stats, message)
}

// ListRecent returns the newest runs first. limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for non-positive values.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	runs, err := r.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return runs, nil
}

// HasActiveRun reports whether a run younger than staleAfter is in progress.
// Older in_progress rows are treated as abandoned.
func (r *Recorder) HasActiveRun(ctx context.Context, staleAfter time.Duration) (bool, error) {
	return r.store.HasActiveRun(ctx, r.now().Add(-staleAfter))
}

func (r *Recorder) finish(ctx context.Context, id string, status domain.RunStatus, success bool, stats domain.SyncStats, message string) error {
	if stats.Errors == nil {
		stats.Errors = []string{}
	}
	completed := r.now().UTC()
	run := &domain.SyncRun{
		ID:          id,
		CompletedAt: &completed,
		Status:      status,
		Success:     &success,
		Stats:       stats,
		Message:     message,
	}
	if err := r.store.Finish(ctx, run); err != nil {
		return fmt.Errorf("finish sync run %s: %w", id, err)
	}

	r.logger.Debug("sync run finished", "run_id", id, "status", status)
	return nil
}
