package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// SyncStats holds statistics about a reconciliation run.
type SyncStats struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// AddError records a per-record failure.
func (s *SyncStats) AddError(msg string) {
	s.Failed++
	s.Errors = append(s.Errors, msg)
}

func (s SyncStats) Value() (driver.Value, error) {
	if s.Errors == nil {
		s.Errors = []string{}
	}
	return json.Marshal(s)
}

func (s *SyncStats) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SyncStats{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("stats: unsupported type")
	}
}

// SyncRun is one row of the sync history.
type SyncRun struct {
	ID          string     `db:"id" json:"id"`
	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
	Status      RunStatus  `db:"status" json:"status"`
	Success     *bool      `db:"success" json:"success"`
	Stats       SyncStats  `db:"stats" json:"stats"`
	Message     string     `db:"message" json:"message"`
}

// SyncConfig is the operator-editable Notion sync configuration. It is loaded
// once per run and passed by value.
type SyncConfig struct {
	Enabled          bool       `json:"enabled"`
	NotionAPIKey     string     `json:"notionApiKey"`
	NotionDatabaseID string     `json:"notionDatabaseId"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt"`
	SyncInterval     int        `json:"syncInterval"`
	AutoSync         bool       `json:"autoSync"`
}

const DefaultSyncInterval = 60

// DefaultSyncConfig is returned when no configuration has been saved yet.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{SyncInterval: DefaultSyncInterval}
}

// Due reports whether an automatic sync should run at now.
func (c SyncConfig) Due(now time.Time) bool {
	if !c.Enabled || !c.AutoSync || c.SyncInterval <= 0 {
		return false
	}
	if c.LastSyncedAt == nil {
		return true
	}
	next := c.LastSyncedAt.Add(time.Duration(c.SyncInterval) * time.Minute)
	return !now.Before(next)
}

// SyncConfigPatch is a partial update of SyncConfig. Nil fields are left
// unchanged.
type SyncConfigPatch struct {
	Enabled          *bool   `json:"enabled"`
	NotionAPIKey     *string `json:"notionApiKey"`
	NotionDatabaseID *string `json:"notionDatabaseId"`
	SyncInterval     *int    `json:"syncInterval"`
	AutoSync         *bool   `json:"autoSync"`
}

var ErrInvalidSyncInterval = errors.New("sync interval must be at least 1 minute when auto sync is enabled")

// Apply returns cfg with the patch applied.
func (p SyncConfigPatch) Apply(cfg SyncConfig) (SyncConfig, error) {
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.NotionAPIKey != nil {
		cfg.NotionAPIKey = *p.NotionAPIKey
	}
	if p.NotionDatabaseID != nil {
		cfg.NotionDatabaseID = *p.NotionDatabaseID
	}
	if p.SyncInterval != nil {
		cfg.SyncInterval = *p.SyncInterval
	}
	if p.AutoSync != nil {
		cfg.AutoSync = *p.AutoSync
	}
	if cfg.AutoSync && cfg.SyncInterval < 1 {
		return cfg, ErrInvalidSyncInterval
	}
	return cfg, nil
}

// ResultStatus classifies the outcome of RunSync.
type ResultStatus string

const (
	ResultCompleted      ResultStatus = "completed"
	ResultDisabled       ResultStatus = "disabled"
	ResultInvalidConfig  ResultStatus = "invalid_config"
	ResultAlreadyRunning ResultStatus = "already_running"
	ResultFailed         ResultStatus = "failed"
	ResultCancelled      ResultStatus = "cancelled"
)

// SyncResult is returned to callers of RunSync. It never carries a raw error.
type SyncResult struct {
	Success bool         `json:"success"`
	Status  ResultStatus `json:"status"`
	Message string       `json:"message"`
	RunID   string       `json:"runId,omitempty"`
	Stats   *SyncStats   `json:"stats,omitempty"`
}

// ConnectionResult is returned by connection tests.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

var ErrRunFinished = errors.New("sync run is already finished")
