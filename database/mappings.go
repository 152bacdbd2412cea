package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/core"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/samber/mo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MappingsRepository struct {
	db *gorm.DB
}

func NewMappingsRepository(db *gorm.DB) *MappingsRepository {
	return &MappingsRepository{db: db}
}

func (r *MappingsRepository) GetByOpportunity(ctx context.Context, tenantID, opportunityID string) (mo.Option[*models.CardMapping], error) {
	return r.first(ctx, "tenant_id = ? AND opportunity_id = ?", tenantID, opportunityID)
}

func (r *MappingsRepository) GetByCard(ctx context.Context, tenantID, cardID string) (mo.Option[*models.CardMapping], error) {
	return r.first(ctx, "tenant_id = ? AND trello_card_id = ?", tenantID, cardID)
}

func (r *MappingsRepository) first(ctx context.Context, query string, args ...any) (mo.Option[*models.CardMapping], error) {
	var mapping models.CardMapping
	err := r.db.WithContext(ctx).Where(query, args...).First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mo.None[*models.CardMapping](), nil
		}
		return mo.None[*models.CardMapping](), fmt.Errorf("failed to get card mapping: %w", err)
	}
	return mo.Some(&mapping), nil
}

// Upsert inserts the mapping or, when the (tenant, opportunity) pair already
// exists, overwrites the card/list/sync columns of that row in one statement.
func (r *MappingsRepository) Upsert(ctx context.Context, mapping *models.CardMapping) error {
	if mapping.TenantID == "" || mapping.OpportunityID == "" || mapping.TrelloCardID == "" {
		return fmt.Errorf("tenant_id, opportunity_id and trello_card_id are required")
	}
	if mapping.ID == "" {
		mapping.ID = core.NewID("map")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "opportunity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trello_card_id",
			"trello_board_id",
			"trello_list_id",
			"calendar_event_id",
			"last_synced_at",
			"sync_direction",
			"updated_at",
		}),
	}).Create(mapping).Error
	if err != nil {
		return fmt.Errorf("failed to upsert card mapping: %w", err)
	}

	return nil
}

// Touch records an inbound sync on the card's mapping. An empty listID keeps the stored list.
func (r *MappingsRepository) Touch(ctx context.Context, tenantID, cardID, listID string, syncedAt time.Time, direction models.SyncDirection) error {
	updates := map[string]any{
		"last_synced_at": syncedAt,
		"sync_direction": string(direction),
	}
	if listID != "" {
		updates["trello_list_id"] = listID
	}

	result := r.db.WithContext(ctx).
		Model(&models.CardMapping{}).
		Where("tenant_id = ? AND trello_card_id = ?", tenantID, cardID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update card mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("card mapping for card %s: %w", cardID, core.ErrNotFound)
	}

	return nil
}

func (r *MappingsRepository) DeleteByCard(ctx context.Context, tenantID, cardID string) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND trello_card_id = ?", tenantID, cardID).
		Delete(&models.CardMapping{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete card mapping: %w", err)
	}
	return nil
}
