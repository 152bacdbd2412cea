package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/gin-gonic/gin"
)

const (
	defaultSyncLogLimit = 50
	maxSyncLogLimit     = 200
)

type ConfigResponse struct {
	TenantID      string                   `json:"tenant_id"`
	APIKey        string                   `json:"api_key"`
	APIToken      string                   `json:"api_token"`
	BoardID       string                   `json:"board_id"`
	BoardName     string                   `json:"board_name"`
	SyncEnabled   bool                     `json:"sync_enabled"`
	WebhookActive bool                     `json:"webhook_active"`
	ListMapping   models.StatusListMapping `json:"list_mapping"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// maskSecret keeps the last four characters of s.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func newConfigResponse(cfg *models.TrelloConfig) *ConfigResponse {
	return &ConfigResponse{
		TenantID:      cfg.TenantID,
		APIKey:        maskSecret(cfg.APIKey),
		APIToken:      maskSecret(cfg.APIToken),
		BoardID:       cfg.BoardID,
		BoardName:     cfg.BoardName,
		SyncEnabled:   cfg.SyncEnabled,
		WebhookActive: cfg.WebhookID != nil && *cfg.WebhookID != "",
		ListMapping:   cfg.Lists(),
		UpdatedAt:     cfg.UpdatedAt,
	}
}

func (h *Handler) GetTrelloConfigHandler(c *gin.Context) {
	found, err := h.Settings.GetConfig(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	cfg, ok := found.Get()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"config": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": newConfigResponse(cfg)})
}

// SaveTrelloConfigHandler stores the tenant's configuration. Blank or masked
// secrets keep the stored values, so the form can be resubmitted as shown.
func (h *Handler) SaveTrelloConfigHandler(c *gin.Context) {
	var input trellosync.ConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	ctx := c.Request.Context()
	tenant := tenantID(c)

	found, err := h.Settings.GetConfig(ctx, tenant)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing, ok := found.Get(); ok {
		if input.APIKey == "" || input.APIKey == maskSecret(existing.APIKey) {
			input.APIKey = existing.APIKey
		}
		if input.APIToken == "" || input.APIToken == maskSecret(existing.APIToken) {
			input.APIToken = existing.APIToken
		}
	}

	cfg, err := h.Settings.SaveConfig(ctx, tenant, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": newConfigResponse(cfg)})
}

func (h *Handler) DisableTrelloSyncHandler(c *gin.Context) {
	if err := h.Settings.DisableSync(c.Request.Context(), tenantID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trello sync disabled"})
}

type testConnectionRequest struct {
	APIKey   string `json:"api_key" binding:"required"`
	APIToken string `json:"api_token" binding:"required"`
}

func (h *Handler) TestConnectionHandler(c *gin.Context) {
	var req testConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key and api_token are required"})
		return
	}

	member, err := h.Settings.TestConnection(c.Request.Context(), req.APIKey, req.APIToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}

func (h *Handler) ListBoardsHandler(c *gin.Context) {
	boards, err := h.Settings.ListBoards(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

func (h *Handler) ListListsHandler(c *gin.Context) {
	lists, err := h.Settings.ListLists(c.Request.Context(), tenantID(c), c.Param("boardID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lists": lists})
}

func (h *Handler) ListSyncLogsHandler(c *gin.Context) {
	limit := defaultSyncLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSyncLogLimit)
	}

	entries, err := h.SyncLogs.ListSyncLogs(c.Request.Context(), tenantID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
