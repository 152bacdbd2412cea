package api

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	// Tokens maps bearer tokens to tenant ids.
	Tokens map[string]string
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"OPTIONS", "GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(logger *zap.Logger, h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)

		apiGroup.POST("/trello/webhook", h.TrelloWebhookHandler)
		apiGroup.HEAD("/trello/webhook", h.TrelloWebhookHandler)
		apiGroup.GET("/trello/webhook", h.TrelloWebhookHandler)
	}

	tenantGroup := apiGroup.Group("", TenantAuth(cfg.Tokens))
	{
		tenantGroup.GET("/trello/config", h.GetTrelloConfigHandler)
		tenantGroup.PUT("/trello/config", h.SaveTrelloConfigHandler)
		tenantGroup.DELETE("/trello/config/webhook", h.DisableTrelloSyncHandler)
		tenantGroup.POST("/trello/test-connection", h.TestConnectionHandler)
		tenantGroup.GET("/trello/boards", h.ListBoardsHandler)
		tenantGroup.GET("/trello/boards/:boardID/lists", h.ListListsHandler)
		tenantGroup.GET("/trello/sync-logs", h.ListSyncLogsHandler)

		tenantGroup.POST("/opportunities/:id/trello-sync", h.SyncOpportunityHandler)
	}

	return router
}
