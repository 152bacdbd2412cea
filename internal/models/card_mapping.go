package models

import "time"

type SyncDirection string

const (
	DirectionToTrello   SyncDirection = "to_external"
	DirectionFromTrello SyncDirection = "from_external"
)

// CardMapping links one opportunity to one Trello card.
// Unique per (tenant, opportunity) and per (tenant, card).
type CardMapping struct {
	ID              string `gorm:"primaryKey"`
	TenantID        string `gorm:"not null;uniqueIndex:idx_card_mappings_tenant_opportunity;uniqueIndex:idx_card_mappings_tenant_card"`
	OpportunityID   string `gorm:"not null;uniqueIndex:idx_card_mappings_tenant_opportunity"`
	TrelloCardID    string `gorm:"not null;uniqueIndex:idx_card_mappings_tenant_card"`
	TrelloBoardID   string
	TrelloListID    string
	CalendarEventID string
	LastSyncedAt    time.Time
	SyncDirection   SyncDirection
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
