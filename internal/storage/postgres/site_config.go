package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"creator_sync/internal/domain"
)

// SyncConfigKey is the site_config key holding the Notion sync settings.
const SyncConfigKey = "notion_sync"

type SiteConfigStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewSiteConfigStore(db *sqlx.DB, txManager *TransactionManager) *SiteConfigStore {
	return &SiteConfigStore{db: db, txManager: txManager}
}

// GetSyncConfig returns the stored sync configuration, or the defaults when
// none has been saved.
func (s *SiteConfigStore) GetSyncConfig(ctx context.Context) (domain.SyncConfig, error) {
	return s.getSyncConfig(ctx, GetExecutor(ctx, s.db), false)
}

func (s *SiteConfigStore) getSyncConfig(ctx context.Context, q sqlx.QueryerContext, forUpdate bool) (domain.SyncConfig, error) {
	query := `SELECT value FROM site_config WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := sqlx.GetContext(ctx, q, &raw, query, SyncConfigKey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSyncConfig(), nil
	}
	if err != nil {
		return domain.SyncConfig{}, err
	}

	cfg := domain.DefaultSyncConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.SyncConfig{}, fmt.Errorf("decode sync config: %w", err)
	}
	return cfg, nil
}

// SaveSyncConfig upserts the whole configuration.
func (s *SiteConfigStore) SaveSyncConfig(ctx context.Context, cfg domain.SyncConfig) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode sync config: %w", err)
	}

	query := `
		INSERT INTO site_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	_, err = GetExecutor(ctx, s.db).ExecContext(ctx, query, SyncConfigKey, value)
	return err
}

// UpdateSyncConfig applies patch under a row lock so concurrent updates do
// not lose writes.
func (s *SiteConfigStore) UpdateSyncConfig(ctx context.Context, patch domain.SyncConfigPatch) (domain.SyncConfig, error) {
	var updated domain.SyncConfig
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.getSyncConfig(txCtx, GetExecutor(txCtx, s.db), true)
		if err != nil {
			return err
		}

		updated, err = patch.Apply(current)
		if err != nil {
			return err
		}

		return s.SaveSyncConfig(txCtx, updated)
	})
	return updated, err
}

// SetLastSyncedAt records the completion time of the latest run.
func (s *SiteConfigStore) SetLastSyncedAt(ctx context.Context, at time.Time) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		cfg, err := s.getSyncConfig(txCtx, GetExecutor(txCtx, s.db), true)
		if err != nil {
			return err
		}
		at := at.UTC()
		cfg.LastSyncedAt = &at
		return s.SaveSyncConfig(txCtx, cfg)
	})
}
