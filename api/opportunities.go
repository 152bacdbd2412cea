package api

import (
	"fmt"
	"net/http"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/core"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type syncOpportunityRequest struct {
	TrelloCardID string `json:"trello_card_id"`
}

// SyncOpportunityHandler pushes the stored opportunity to the tenant's board.
func (h *Handler) SyncOpportunityHandler(c *gin.Context) {
	var req syncOpportunityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
			return
		}
	}

	ctx := c.Request.Context()
	tenant := tenantID(c)
	opportunityID := c.Param("id")

	found, err := h.Opportunities.GetOpportunity(ctx, tenant, opportunityID)
	if err != nil {
		respondError(c, err)
		return
	}
	opp, ok := found.Get()
	if !ok {
		respondError(c, fmt.Errorf("opportunity %s: %w", opportunityID, core.ErrNotFound))
		return
	}

	fields := trellosync.FieldsFromOpportunity(opp)
	fields.TrelloCardID = req.TrelloCardID

	result, err := h.Engine.SyncOpportunity(ctx, tenant, opp.ID, fields, opp.Status)
	if err != nil {
		zap.L().Warn("Opportunity sync failed",
			zap.String("tenantID", tenant),
			zap.String("opportunityID", opp.ID),
			zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
