package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"creator_sync/internal/domain"
)

type SyncHistoryStore struct {
	db *sqlx.DB
}

func NewSyncHistoryStore(db *sqlx.DB) *SyncHistoryStore {
	return &SyncHistoryStore{db: db}
}

func (s *SyncHistoryStore) Insert(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_history (id, started_at, status, stats, message)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.Status,
		run.Stats,
		run.Message,
	)
	return err
}

// Finish writes the final state of a run. Only rows still in progress are
// updated; a finished row yields domain.ErrRunFinished.
func (s *SyncHistoryStore) Finish(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_history SET
			completed_at = $2,
			status = $3,
			success = $4,
			stats = $5,
			message = $6
		WHERE id = $1 AND status = 'in_progress'`

	res, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.CompletedAt,
		run.Status,
		run.Success,
		run.Stats,
		run.Message,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRunFinished
	}
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (s *SyncHistoryStore) ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	query := `
		SELECT id, started_at, completed_at, status, success, stats, message
		FROM sync_history
		ORDER BY started_at DESC
		LIMIT $1`

	var runs []domain.SyncRun
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// HasActiveRun reports whether a run started after since is still in progress.
func (s *SyncHistoryStore) HasActiveRun(ctx context.Context, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sync_history
			WHERE status = 'in_progress' AND started_at > $1
		)`

	var active bool
	err := s.db.GetContext(ctx, &active, query, since)
	return active, err
}
