package trellosync

import (
	"context"
	"fmt"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"go.uber.org/zap"
)

// OpportunityFields are the display fields written to the card.
type OpportunityFields struct {
	PatientName   string
	Phone         string
	Keyword       string
	Notes         string
	ScheduledDate *time.Time
	// TrelloCardID is a card reference known by the caller, used only when no
	// mapping row exists for the opportunity.
	TrelloCardID string
}

// FieldsFromOpportunity copies the card-relevant fields of opp.
func FieldsFromOpportunity(opp *models.Opportunity) OpportunityFields {
	return OpportunityFields{
		PatientName:   opp.PatientName,
		Phone:         opp.Phone,
		Keyword:       opp.Keyword,
		Notes:         opp.Notes,
		ScheduledDate: opp.ScheduledDate,
	}
}

type SyncResult struct {
	CardID string            `json:"card_id"`
	Action models.SyncAction `json:"action"`
}

// loadConfig returns the tenant's config or ErrNotConfigured.
func (e *Engine) loadConfig(ctx context.Context, tenantID string) (*models.TrelloConfig, error) {
	found, err := e.configs.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load Trello config: %w", err)
	}
	cfg, ok := found.Get()
	if !ok || !cfg.HasCredentials() {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// SyncOpportunity creates, moves or updates the opportunity's card so that it
// sits in the list mapped to status. Remote failures abort before the mapping
// or the audit log is written; calling again re-resolves the remote state, so
// retrying is safe.
func (e *Engine) SyncOpportunity(ctx context.Context, tenantID, opportunityID string, fields OpportunityFields, status models.OpportunityStatus) (*SyncResult, error) {
	logger := zap.L().With(zap.String("tenantID", tenantID), zap.String("opportunityID", opportunityID))

	cfg, err := e.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	listID, ok := ListIDFromStatus(status, cfg.Lists())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnmappedStatus, status)
	}

	existing, err := e.mappings.GetByOpportunity(ctx, tenantID, opportunityID)
	if err != nil {
		return nil, err
	}

	cardRef := fields.TrelloCardID
	var calendarEventID string
	if mapping, ok := existing.Get(); ok {
		cardRef = mapping.TrelloCardID
		calendarEventID = mapping.CalendarEventID
	}

	client := e.remote(cfg.APIKey, cfg.APIToken)
	input := models.TrelloCardInput{
		Name: CardTitle(fields.PatientName, fields.ScheduledDate),
		Desc: EncodeDescription(Description{
			Phone:         fields.Phone,
			Keyword:       fields.Keyword,
			Notes:         fields.Notes,
			OpportunityID: opportunityID,
		}),
		ListID: listID,
		Due:    fields.ScheduledDate,
	}

	var (
		card     *models.TrelloCard
		action   models.SyncAction
		fromList string
	)
	if cardRef == "" {
		action = models.ActionCreateCard
		card, err = client.CreateCard(ctx, input)
	} else {
		current, getErr := client.GetCard(ctx, cardRef)
		switch {
		case getErr != nil && integrations.IsNotFound(getErr):
			logger.Warn("Mapped card no longer exists, creating a replacement",
				zap.String("cardID", cardRef), zap.Error(fmt.Errorf("%w: %w", ErrStaleReference, getErr)))
			action = models.ActionCreateCard
			card, err = client.CreateCard(ctx, input)
		case getErr != nil:
			return nil, fmt.Errorf("%w: failed to fetch card %s: %w", ErrRemoteUnavailable, cardRef, getErr)
		case current.IDList != listID:
			action = models.ActionMoveCard
			fromList = current.IDList
			card, err = client.UpdateCard(ctx, cardRef, input)
		default:
			action = models.ActionUpdateCard
			update := input
			update.ListID = ""
			card, err = client.UpdateCard(ctx, cardRef, update)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s failed: %w", ErrRemoteUnavailable, action, err)
	}

	if action == models.ActionMoveCard {
		e.commentStatusChange(ctx, client, card.ID, fromList, cfg.Lists(), status)
	}

	calendarEventID = e.mirrorAppointment(ctx, opportunityID, fields, status, calendarEventID)

	if err := e.mappings.Upsert(ctx, &models.CardMapping{
		TenantID:        tenantID,
		OpportunityID:   opportunityID,
		TrelloCardID:    card.ID,
		TrelloBoardID:   cfg.BoardID,
		TrelloListID:    listID,
		CalendarEventID: calendarEventID,
		LastSyncedAt:    e.now(),
		SyncDirection:   models.DirectionToTrello,
	}); err != nil {
		return nil, err
	}

	e.appendLog(ctx, &models.SyncLog{
		TenantID:      tenantID,
		Action:        action,
		Direction:     models.DirectionToTrello,
		OpportunityID: opportunityID,
		TrelloCardID:  card.ID,
		Details: map[string]any{
			"status":  string(status),
			"list_id": listID,
		},
		Status: models.SyncSuccess,
	})

	logger.Info("Synced opportunity to Trello", zap.String("cardID", card.ID), zap.String("action", string(action)))
	return &SyncResult{CardID: card.ID, Action: action}, nil
}

// commentStatusChange leaves a trail on the card. Best effort.
func (e *Engine) commentStatusChange(ctx context.Context, client Remote, cardID, fromList string, lists models.StatusListMapping, to models.OpportunityStatus) {
	text := fmt.Sprintf("🔄 Status: %s", to)
	if from, ok := StatusFromListID(fromList, lists); ok {
		text = fmt.Sprintf("🔄 Status: %s → %s", from, to)
	}
	if err := client.AddComment(ctx, cardID, text); err != nil {
		zap.L().Warn("Failed to comment status change on card", zap.String("cardID", cardID), zap.Error(err))
	}
}

// mirrorAppointment keeps the calendar event in step with a scheduled
// opportunity and returns the event id to remember. Calendar failures never
// fail the sync.
func (e *Engine) mirrorAppointment(ctx context.Context, opportunityID string, fields OpportunityFields, status models.OpportunityStatus, eventID string) string {
	if e.calendar == nil || status != models.StatusScheduled || fields.ScheduledDate == nil {
		return eventID
	}

	newID, err := e.calendar.UpsertAppointment(ctx, models.Appointment{
		OpportunityID: opportunityID,
		PatientName:   fields.PatientName,
		Phone:         fields.Phone,
		Keyword:       fields.Keyword,
		Start:         *fields.ScheduledDate,
	}, eventID)
	if err != nil {
		zap.L().Error("Failed to mirror appointment to calendar", zap.String("opportunityID", opportunityID), zap.Error(err))
		return eventID
	}
	return newID
}
