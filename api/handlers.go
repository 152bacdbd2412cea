package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/core"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	DB            *gorm.DB
	Engine        *trellosync.Engine
	Settings      *trellosync.Settings
	Opportunities trellosync.OpportunityRepository
	SyncLogs      trellosync.SyncLogRepository
	Workers       chan struct{}
}

// respondError maps sync engine errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trellosync.ErrNotConfigured):
		status = http.StatusPreconditionFailed
	case errors.Is(err, trellosync.ErrUnmappedStatus):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, trellosync.ErrRemoteUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) TrelloWebhookHandler(c *gin.Context) {
	// Trello can send HEAD, GET, and POST requests to the webhook URL
	if c.Request.Method != http.MethodPost {
		zap.L().Debug("Received non-POST request to webhook endpoint; responding with 200 OK", zap.String("method", c.Request.Method))
		c.Status(http.StatusOK)
		return
	}

	// Trello retries anything but a quick 200, so every POST is acknowledged
	// whatever happens to it below.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		zap.L().Warn("Could not read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"message": "No action taken"})
		return
	}

	select {
	case h.Workers <- struct{}{}:
		defer func() { <-h.Workers }()
	case <-c.Request.Context().Done():
		zap.L().Warn("Webhook dropped while waiting for a worker", zap.Error(c.Request.Context().Err()))
		c.JSON(http.StatusOK, gin.H{"message": "No action taken"})
		return
	}

	// processing outlives the caller's connection
	ctx := context.WithoutCancel(c.Request.Context())
	report := h.Engine.HandleBoardWebhook(ctx, body)

	if len(report.Outcomes) == 0 {
		zap.L().Debug("Trello webhook matched no work",
			zap.String("boardID", report.BoardID),
			zap.String("cardID", report.CardID),
			zap.String("event", string(report.Event)))
		c.JSON(http.StatusOK, gin.H{"message": "No action taken"})
		return
	}

	zap.L().Info("Processed Trello webhook",
		zap.String("boardID", report.BoardID),
		zap.String("cardID", report.CardID),
		zap.String("event", string(report.Event)),
		zap.Int("tenants", len(report.Outcomes)),
		zap.Int("failed", len(report.Failed())))
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed"})
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
