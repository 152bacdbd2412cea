package models

import (
	"time"

	"gorm.io/datatypes"
)

type SyncAction string

const (
	ActionCreateCard         SyncAction = "create_card"
	ActionUpdateCard         SyncAction = "update_card"
	ActionMoveCard           SyncAction = "move_card"
	ActionCreateOpportunity  SyncAction = "create_opportunity"
	ActionUpdateOpportunity  SyncAction = "update_opportunity"
	ActionArchiveOpportunity SyncAction = "archive_opportunity"
)

type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncLog is an append-only audit entry. Rows are never updated.
type SyncLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	TenantID      string            `gorm:"index;not null" json:"tenant_id"`
	Action        SyncAction        `json:"action"`
	Direction     SyncDirection     `json:"direction"`
	OpportunityID string            `json:"opportunity_id,omitempty"`
	TrelloCardID  string            `json:"trello_card_id,omitempty"`
	Details       datatypes.JSONMap `json:"details,omitempty"`
	Status        SyncStatus        `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
