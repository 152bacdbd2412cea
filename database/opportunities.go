package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/core"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/samber/mo"
	"gorm.io/gorm"
)

type OpportunitiesRepository struct {
	db *gorm.DB
}

func NewOpportunitiesRepository(db *gorm.DB) *OpportunitiesRepository {
	return &OpportunitiesRepository{db: db}
}

func (r *OpportunitiesRepository) GetOpportunity(ctx context.Context, tenantID, id string) (mo.Option[*models.Opportunity], error) {
	var opp models.Opportunity
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&opp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mo.None[*models.Opportunity](), nil
		}
		return mo.None[*models.Opportunity](), fmt.Errorf("failed to get opportunity: %w", err)
	}
	return mo.Some(&opp), nil
}

func (r *OpportunitiesRepository) CreateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if opp.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}
	if opp.ID == "" {
		opp.ID = core.NewID("opp")
	}
	if opp.Status == "" {
		opp.Status = models.StatusNew
	}

	if err := r.db.WithContext(ctx).Create(opp).Error; err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

// UpdateOpportunity applies only the columns set in changes.
func (r *OpportunitiesRepository) UpdateOpportunity(ctx context.Context, tenantID, id string, changes models.OpportunityChanges) error {
	cols := changes.Columns()
	if len(cols) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(cols)
	if result.Error != nil {
		return fmt.Errorf("failed to update opportunity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("opportunity %s: %w", id, core.ErrNotFound)
	}

	return nil
}
