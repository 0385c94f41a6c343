package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"creator_sync/internal/domain"
	"creator_sync/internal/notion"
)

type Syncer interface {
	RunSync(ctx context.Context) domain.SyncResult
	TestConnection(ctx context.Context, creds notion.Credentials) domain.ConnectionResult
}

type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

type ConfigStore interface {
	GetSyncConfig(ctx context.Context) (domain.SyncConfig, error)
	UpdateSyncConfig(ctx context.Context, patch domain.SyncConfigPatch) (domain.SyncConfig, error)
}

type Handler struct {
	syncer     Syncer
	history    HistoryLister
	configs    ConfigStore
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewHandler(syncer Syncer, history HistoryLister, configs ConfigStore, runTimeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		syncer:     syncer,
		history:    history,
		configs:    configs,
		runTimeout: runTimeout,
		logger:     logger.With("component", "api"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RunSync triggers a sync and blocks until it finishes or runTimeout
// elapses.
func (h *Handler) RunSync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.runTimeout)
	defer cancel()

	result := h.syncer.RunSync(ctx)
	c.JSON(syncStatusCode(result.Status), result)
}

func syncStatusCode(status domain.ResultStatus) int {
	switch status {
	case domain.ResultCompleted:
		return http.StatusOK
	case domain.ResultAlreadyRunning:
		return http.StatusConflict
	case domain.ResultDisabled, domain.ResultInvalidConfig:
		return http.StatusUnprocessableEntity
	case domain.ResultCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type testConnectionRequest struct {
	NotionAPIKey     string `json:"notionApiKey"`
	NotionDatabaseID string `json:"notionDatabaseId"`
}

func (h *Handler) TestConnection(c *gin.Context) {
	var req testConnectionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	result := h.syncer.TestConnection(c.Request.Context(), notion.Credentials{
		APIKey:     strings.TrimSpace(req.NotionAPIKey),
		DatabaseID: strings.TrimSpace(req.NotionDatabaseID),
	})
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync history", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load sync history"})
		return
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.configs.GetSyncConfig(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load sync config", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load sync configuration"})
		return
	}

	c.JSON(http.StatusOK, maskConfig(cfg))
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var patch domain.SyncConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cfg, err := h.configs.UpdateSyncConfig(c.Request.Context(), patch)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSyncInterval) {
			c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("failed to update sync config", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to save sync configuration"})
		return
	}

	h.logger.Info("sync config updated", "enabled", cfg.Enabled, "auto_sync", cfg.AutoSync, "interval", cfg.SyncInterval)
	c.JSON(http.StatusOK, maskConfig(cfg))
}

func maskConfig(cfg domain.SyncConfig) domain.SyncConfig {
	cfg.NotionAPIKey = maskSecret(cfg.NotionAPIKey)
	return cfg
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return "********" + s[len(s)-4:]
}
