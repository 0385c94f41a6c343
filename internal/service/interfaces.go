package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"creator_sync/internal/domain"
	"creator_sync/internal/notion"
)

type CreatorStore interface {
	List(ctx context.Context) ([]domain.Creator, error)
	Insert(ctx context.Context, creator *domain.Creator) error
	Update(ctx context.Context, creator *domain.Creator) error
}

type ConfigStore interface {
	GetSyncConfig(ctx context.Context) (domain.SyncConfig, error)
	SetLastSyncedAt(ctx context.Context, at time.Time) error
}

type HistoryRecorder interface {
	StartRun(ctx context.Context) (string, error)
	CompleteRun(ctx context.Context, id string, stats domain.SyncStats, message string, success bool) error
	FailRun(ctx context.Context, id, message string) error
	AbortRun(ctx context.Context, id string, stats domain.SyncStats, message string) error
	HasActiveRun(ctx context.Context, staleAfter time.Duration) (bool, error)
}

// RunLock excludes concurrent runs across processes.
type RunLock interface {
	TryAcquire(ctx context.Context) (release func() error, acquired bool, err error)
}

type NotionClient interface {
	TestConnection(ctx context.Context, creds notion.Credentials) domain.ConnectionResult
	QueryDatabase(ctx context.Context, creds notion.Credentials, pageSize int) ([]notion.Page, error)
	CreatePage(ctx context.Context, creds notion.Credentials, props notion.Properties) (*notion.Page, error)
}

type Publisher interface {
	Publish(ctx context.Context, result domain.SyncResult) error
	Close() error
}
