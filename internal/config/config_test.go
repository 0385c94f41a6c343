package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  dbname: creators\n"))
	require.NoError(t, err)

	assert.Equal(t, "creators", cfg.Database.DBName)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "https://api.notion.com/v1", cfg.Notion.BaseURL)
	assert.Equal(t, "2022-06-28", cfg.Notion.Version)
	assert.Equal(t, 100, cfg.Notion.PageSize)
	assert.Equal(t, 1, cfg.Notion.MaxPages)
	assert.Equal(t, 30*time.Second, cfg.Notion.Timeout)
	assert.Equal(t, 3, cfg.Notion.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RunTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Sync.StaleRunAfter)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("CREATOR_SYNC_DB_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
database:
  password: ${CREATOR_SYNC_DB_PASSWORD}
notion:
  timeout: 10s
  max_pages: 4
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 10*time.Second, cfg.Notion.Timeout)
	assert.Equal(t, 4, cfg.Notion.MaxPages)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.DSN())
}
