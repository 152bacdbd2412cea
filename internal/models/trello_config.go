package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrelloConfig holds a tenant's Trello credentials, selected board and
// status -> list mapping. There is at most one row per tenant.
type TrelloConfig struct {
	TenantID    string `gorm:"primaryKey"`
	APIKey      string
	APIToken    string
	BoardID     string `gorm:"index"`
	BoardName   string
	SyncEnabled bool `gorm:"index"`
	ListMapping datatypes.JSONType[StatusListMapping]
	WebhookID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCredentials reports whether the config can be used to talk to a board.
func (c *TrelloConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APIToken != "" && c.BoardID != ""
}

func (c *TrelloConfig) Lists() StatusListMapping {
	lists := c.ListMapping.Data()
	if lists == nil {
		return StatusListMapping{}
	}
	return lists
}

func (c *TrelloConfig) SetLists(lists StatusListMapping) {
	c.ListMapping = datatypes.NewJSONType(lists)
}
