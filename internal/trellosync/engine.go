// Package trellosync keeps a tenant's Trello board and the opportunity
// pipeline consistent in both directions.
package trellosync

import (
	"context"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

type ConfigRepository interface {
	GetConfig(ctx context.Context, tenantID string) (mo.Option[*models.TrelloConfig], error)
	SaveConfig(ctx context.Context, cfg *models.TrelloConfig) error
	FindSyncConfigsByBoardID(ctx context.Context, boardID string) ([]*models.TrelloConfig, error)
}

type MappingRepository interface {
	GetByOpportunity(ctx context.Context, tenantID, opportunityID string) (mo.Option[*models.CardMapping], error)
	GetByCard(ctx context.Context, tenantID, cardID string) (mo.Option[*models.CardMapping], error)
	// Upsert must be atomic on (tenant, opportunity).
	Upsert(ctx context.Context, mapping *models.CardMapping) error
	Touch(ctx context.Context, tenantID, cardID, listID string, syncedAt time.Time, direction models.SyncDirection) error
	DeleteByCard(ctx context.Context, tenantID, cardID string) error
}

type OpportunityRepository interface {
	GetOpportunity(ctx context.Context, tenantID, id string) (mo.Option[*models.Opportunity], error)
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) error
	UpdateOpportunity(ctx context.Context, tenantID, id string, changes models.OpportunityChanges) error
}

type SyncLogRepository interface {
	AppendSyncLog(ctx context.Context, entry *models.SyncLog) error
	ListSyncLogs(ctx context.Context, tenantID string, limit int) ([]*models.SyncLog, error)
}

// Remote is the subset of the Trello API the engine talks to.
type Remote interface {
	GetMe(ctx context.Context) (*models.TrelloMember, error)
	GetBoards(ctx context.Context) ([]models.TrelloBoard, error)
	GetLists(ctx context.Context, boardID string) ([]models.TrelloList, error)
	GetCard(ctx context.Context, cardID string) (*models.TrelloCard, error)
	CreateCard(ctx context.Context, input models.TrelloCardInput) (*models.TrelloCard, error)
	UpdateCard(ctx context.Context, cardID string, input models.TrelloCardInput) (*models.TrelloCard, error)
	AddComment(ctx context.Context, cardID, text string) error
	RegisterWebhook(ctx context.Context, boardID, callbackURL, description string) (string, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// RemoteFactory builds a Remote authenticated with a tenant's credentials.
type RemoteFactory func(apiKey, apiToken string) Remote

// AppointmentCalendar mirrors scheduled opportunities to a calendar.
type AppointmentCalendar interface {
	UpsertAppointment(ctx context.Context, appt models.Appointment, eventID string) (string, error)
	DeleteAppointment(ctx context.Context, eventID string) error
}

type Engine struct {
	configs       ConfigRepository
	mappings      MappingRepository
	opportunities OpportunityRepository
	logs          SyncLogRepository
	remote        RemoteFactory
	calendar      AppointmentCalendar
	now           func() time.Time
}

type Option func(*Engine)

// WithCalendar enables the appointment calendar mirror.
func WithCalendar(calendar AppointmentCalendar) Option {
	return func(e *Engine) {
		e.calendar = calendar
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(
	configs ConfigRepository,
	mappings MappingRepository,
	opportunities OpportunityRepository,
	logs SyncLogRepository,
	remote RemoteFactory,
	opts ...Option,
) *Engine {
	e := &Engine{
		configs:       configs,
		mappings:      mappings,
		opportunities: opportunities,
		logs:          logs,
		remote:        remote,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// appendLog writes an audit entry. A failed write is logged, never returned.
func (e *Engine) appendLog(ctx context.Context, entry *models.SyncLog) {
	if err := e.logs.AppendSyncLog(ctx, entry); err != nil {
		zap.L().Error("Failed to append sync log",
			zap.String("tenantID", entry.TenantID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}
