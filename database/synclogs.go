package database

import (
	"context"
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"gorm.io/gorm"
)

const defaultSyncLogLimit = 50

type SyncLogsRepository struct {
	db *gorm.DB
}

func NewSyncLogsRepository(db *gorm.DB) *SyncLogsRepository {
	return &SyncLogsRepository{db: db}
}

func (r *SyncLogsRepository) AppendSyncLog(ctx context.Context, entry *models.SyncLog) error {
	if entry.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}
	// write-once
	entry.ID = 0
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

// ListSyncLogs returns the tenant's most recent entries, newest first.
func (r *SyncLogsRepository) ListSyncLogs(ctx context.Context, tenantID string, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}

	var entries []*models.SyncLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}

	return entries, nil
}
