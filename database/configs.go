package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/samber/mo"
	"gorm.io/gorm"
)

type ConfigsRepository struct {
	db *gorm.DB
}

func NewConfigsRepository(db *gorm.DB) *ConfigsRepository {
	return &ConfigsRepository{db: db}
}

func (r *ConfigsRepository) GetConfig(ctx context.Context, tenantID string) (mo.Option[*models.TrelloConfig], error) {
	if tenantID == "" {
		return mo.None[*models.TrelloConfig](), fmt.Errorf("tenant_id cannot be empty")
	}

	var cfg models.TrelloConfig
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mo.None[*models.TrelloConfig](), nil
		}
		return mo.None[*models.TrelloConfig](), fmt.Errorf("failed to get trello config: %w", err)
	}

	return mo.Some(&cfg), nil
}

// SaveConfig inserts or replaces the tenant's config row.
func (r *ConfigsRepository) SaveConfig(ctx context.Context, cfg *models.TrelloConfig) error {
	if cfg.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}

	if err := r.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("failed to save trello config: %w", err)
	}

	return nil
}

// FindSyncConfigsByBoardID returns every sync-enabled config pointing at boardID,
// ordered by tenant id.
func (r *ConfigsRepository) FindSyncConfigsByBoardID(ctx context.Context, boardID string) ([]*models.TrelloConfig, error) {
	if boardID == "" {
		return nil, nil
	}

	var configs []*models.TrelloConfig
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND sync_enabled = ?", boardID, true).
		Order("tenant_id").
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find trello configs for board: %w", err)
	}

	return configs, nil
}
