package trellosync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/core"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventCardCreated  EventKind = "card-created"
	EventCardMoved    EventKind = "card-moved"
	EventCardUpdated  EventKind = "card-updated"
	EventCardDeleted  EventKind = "card-deleted"
	EventCommentAdded EventKind = "comment-added"
	EventIgnored      EventKind = "ignored"
)

// ClassifyAction maps a Trello action onto the events the reconciler handles.
func ClassifyAction(action *models.TrelloWebhookAction) EventKind {
	if action == nil {
		return EventIgnored
	}
	switch action.Type {
	case "createCard", "copyCard":
		return EventCardCreated
	case "updateCard":
		before, after := action.Data.ListBefore, action.Data.ListAfter
		if before != nil && after != nil && before.ID != after.ID {
			return EventCardMoved
		}
		return EventCardUpdated
	case "deleteCard":
		return EventCardDeleted
	case "commentCard":
		return EventCommentAdded
	default:
		return EventIgnored
	}
}

// intendedAction is the audit action recorded for an event, including failures.
func intendedAction(kind EventKind) models.SyncAction {
	switch kind {
	case EventCardCreated:
		return models.ActionCreateOpportunity
	case EventCardDeleted:
		return models.ActionArchiveOpportunity
	default:
		return models.ActionUpdateOpportunity
	}
}

// TenantOutcome is what happened for one tenant. Skipped holds the reason
// the event was deliberately not applied; Err is set when processing failed.
type TenantOutcome struct {
	TenantID      string
	Action        models.SyncAction
	OpportunityID string
	Skipped       error
	Err           error
}

func (o TenantOutcome) Applied() bool {
	return o.Err == nil && o.Skipped == nil
}

type WebhookReport struct {
	BoardID  string
	CardID   string
	Event    EventKind
	Outcomes []TenantOutcome
}

// Failed returns the outcomes that ended in an error.
func (r *WebhookReport) Failed() []TenantOutcome {
	var failed []TenantOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// HandleBoardWebhook applies a Trello board event to every tenant syncing that
// board. It never returns an error: malformed or unmatched events are no-ops,
// and per-tenant failures are recorded in the sync log and in the report.
func (e *Engine) HandleBoardWebhook(ctx context.Context, raw []byte) *WebhookReport {
	report := &WebhookReport{Event: EventIgnored}

	var payload models.TrelloWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Debug("Ignoring webhook with unparseable body", zap.Error(err))
		return report
	}
	if payload.Action == nil {
		return report
	}

	report.BoardID = payload.BoardID()
	report.Event = ClassifyAction(payload.Action)
	card := payload.Action.Data.Card
	if card != nil {
		report.CardID = card.ID
	}

	switch report.Event {
	case EventIgnored, EventCommentAdded:
		return report
	}
	if report.BoardID == "" || report.CardID == "" {
		return report
	}

	configs, err := e.configs.FindSyncConfigsByBoardID(ctx, report.BoardID)
	if err != nil {
		zap.L().Error("Failed to load Trello configs for board", zap.String("boardID", report.BoardID), zap.Error(err))
		return report
	}

	for _, cfg := range configs {
		report.Outcomes = append(report.Outcomes, e.reconcileTenant(ctx, cfg, report.Event, payload.Action))
	}

	return report
}

// reconcileTenant is the error boundary for one tenant.
func (e *Engine) reconcileTenant(ctx context.Context, cfg *models.TrelloConfig, kind EventKind, action *models.TrelloWebhookAction) (outcome TenantOutcome) {
	cardID := action.Data.Card.ID
	outcome = TenantOutcome{TenantID: cfg.TenantID, Action: intendedAction(kind)}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("panic while reconciling: %v", r)
		}
		if outcome.Err != nil {
			zap.L().Error("Failed to reconcile Trello event",
				zap.String("tenantID", cfg.TenantID),
				zap.String("cardID", cardID),
				zap.String("event", string(kind)),
				zap.Error(outcome.Err))
			e.appendLog(ctx, &models.SyncLog{
				TenantID:      cfg.TenantID,
				Action:        outcome.Action,
				Direction:     models.DirectionFromTrello,
				OpportunityID: outcome.OpportunityID,
				TrelloCardID:  cardID,
				Details:       map[string]any{"event": string(kind), "trello_action": action.Type},
				Status:        models.SyncError,
				ErrorMessage:  outcome.Err.Error(),
			})
		}
	}()

	var details map[string]any
	switch kind {
	case EventCardCreated:
		details, outcome.OpportunityID, outcome.Skipped, outcome.Err = e.applyCardCreated(ctx, cfg, cardID)
	case EventCardMoved:
		details, outcome.OpportunityID, outcome.Skipped, outcome.Err = e.applyCardMoved(ctx, cfg, cardID, action.Data.ListBefore, action.Data.ListAfter)
	case EventCardUpdated:
		details, outcome.OpportunityID, outcome.Skipped, outcome.Err = e.applyCardUpdated(ctx, cfg, cardID)
	case EventCardDeleted:
		details, outcome.OpportunityID, outcome.Skipped, outcome.Err = e.applyCardDeleted(ctx, cfg, cardID)
	default:
		outcome.Skipped = fmt.Errorf("unsupported event %s", kind)
	}

	if outcome.Applied() {
		e.appendLog(ctx, &models.SyncLog{
			TenantID:      cfg.TenantID,
			Action:        outcome.Action,
			Direction:     models.DirectionFromTrello,
			OpportunityID: outcome.OpportunityID,
			TrelloCardID:  cardID,
			Details:       details,
			Status:        models.SyncSuccess,
		})
	} else if outcome.Skipped != nil {
		zap.L().Debug("Skipped Trello event",
			zap.String("tenantID", cfg.TenantID),
			zap.String("cardID", cardID),
			zap.String("event", string(kind)),
			zap.NamedError("reason", outcome.Skipped))
	}

	return outcome
}

func (e *Engine) mappedCard(ctx context.Context, tenantID, cardID string) (*models.CardMapping, error) {
	found, err := e.mappings.GetByCard(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}
	mapping, _ := found.Get()
	return mapping, nil
}

// fetchCard wraps a missing card in ErrStaleReference and any other failure
// in ErrRemoteUnavailable.
func (e *Engine) fetchCard(ctx context.Context, cfg *models.TrelloConfig, cardID string) (*models.TrelloCard, error) {
	card, err := e.remote(cfg.APIKey, cfg.APIToken).GetCard(ctx, cardID)
	if integrations.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s: %w", ErrStaleReference, cardID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch card %s: %w", ErrRemoteUnavailable, cardID, err)
	}
	return card, nil
}

// staleAsSkip turns a card deleted before it could be read into a skip; the
// matching deleteCard event carries the archive.
func staleAsSkip(err error) (skipped error, failed error) {
	if errors.Is(err, ErrStaleReference) {
		return err, nil
	}
	return nil, err
}

func (e *Engine) applyCardCreated(ctx context.Context, cfg *models.TrelloConfig, cardID string) (map[string]any, string, error, error) {
	mapping, err := e.mappedCard(ctx, cfg.TenantID, cardID)
	if err != nil {
		return nil, "", nil, err
	}
	if mapping != nil {
		return nil, mapping.OpportunityID, ErrCardAlreadyMapped, nil
	}

	card, err := e.fetchCard(ctx, cfg, cardID)
	if err != nil {
		skipped, failed := staleAsSkip(err)
		return nil, "", skipped, failed
	}

	desc := ParseDescription(card.Desc)
	if desc.OpportunityID != "" {
		return nil, desc.OpportunityID, ErrCardFromCRM, nil
	}

	status, ok := StatusFromListID(card.IDList, cfg.Lists())
	if !ok {
		status = models.StatusNew
	}

	opp := &models.Opportunity{
		ID:            core.NewID("opp"),
		TenantID:      cfg.TenantID,
		PatientName:   NameFromCardTitle(card.Name),
		Phone:         desc.Phone,
		Keyword:       desc.Keyword,
		Notes:         desc.Notes,
		Status:        status,
		ScheduledDate: parseDue(card.Due),
	}
	if err := e.opportunities.CreateOpportunity(ctx, opp); err != nil {
		return nil, "", nil, err
	}

	if err := e.mappings.Upsert(ctx, &models.CardMapping{
		TenantID:      cfg.TenantID,
		OpportunityID: opp.ID,
		TrelloCardID:  card.ID,
		TrelloBoardID: cfg.BoardID,
		TrelloListID:  card.IDList,
		LastSyncedAt:  e.now(),
		SyncDirection: models.DirectionFromTrello,
	}); err != nil {
		return nil, opp.ID, nil, err
	}

	return map[string]any{"status": string(status), "list_id": card.IDList}, opp.ID, nil, nil
}

func (e *Engine) applyCardMoved(ctx context.Context, cfg *models.TrelloConfig, cardID string, before, after *models.TrelloListData) (map[string]any, string, error, error) {
	mapping, err := e.mappedCard(ctx, cfg.TenantID, cardID)
	if err != nil {
		return nil, "", nil, err
	}
	if mapping == nil {
		return nil, "", ErrCardNotTracked, nil
	}

	status, ok := StatusFromListID(after.ID, cfg.Lists())
	if !ok {
		return nil, mapping.OpportunityID, fmt.Errorf("%w: %s", ErrUnmappedList, after.ID), nil
	}

	if err := e.opportunities.UpdateOpportunity(ctx, cfg.TenantID, mapping.OpportunityID, models.OpportunityChanges{Status: &status}); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}
	if err := e.mappings.Touch(ctx, cfg.TenantID, cardID, after.ID, e.now(), models.DirectionFromTrello); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}

	return map[string]any{
		"from_list": before.ID,
		"to_list":   after.ID,
		"status":    string(status),
	}, mapping.OpportunityID, nil, nil
}

func (e *Engine) applyCardUpdated(ctx context.Context, cfg *models.TrelloConfig, cardID string) (map[string]any, string, error, error) {
	mapping, err := e.mappedCard(ctx, cfg.TenantID, cardID)
	if err != nil {
		return nil, "", nil, err
	}
	if mapping == nil {
		return nil, "", ErrCardNotTracked, nil
	}

	card, err := e.fetchCard(ctx, cfg, cardID)
	if err != nil {
		skipped, failed := staleAsSkip(err)
		return nil, mapping.OpportunityID, skipped, failed
	}

	desc := ParseDescription(card.Desc)
	var changes models.OpportunityChanges
	var updated []string
	set := func(field string, value string, target **string) {
		if value != "" {
			*target = &value
			updated = append(updated, field)
		}
	}
	set("patient_name", TrimScheduledSuffix(card.Name), &changes.PatientName)
	set("phone", desc.Phone, &changes.Phone)
	set("keyword", desc.Keyword, &changes.Keyword)
	set("notes", desc.Notes, &changes.Notes)
	if due := parseDue(card.Due); due != nil {
		changes.ScheduledDate = due
		updated = append(updated, "scheduled_date")
	}

	if err := e.opportunities.UpdateOpportunity(ctx, cfg.TenantID, mapping.OpportunityID, changes); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}
	if err := e.mappings.Touch(ctx, cfg.TenantID, cardID, "", e.now(), models.DirectionFromTrello); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}

	return map[string]any{"fields": updated}, mapping.OpportunityID, nil, nil
}

func (e *Engine) applyCardDeleted(ctx context.Context, cfg *models.TrelloConfig, cardID string) (map[string]any, string, error, error) {
	mapping, err := e.mappedCard(ctx, cfg.TenantID, cardID)
	if err != nil {
		return nil, "", nil, err
	}
	if mapping == nil {
		return nil, "", ErrCardNotTracked, nil
	}

	archived := models.StatusArchived
	if err := e.opportunities.UpdateOpportunity(ctx, cfg.TenantID, mapping.OpportunityID, models.OpportunityChanges{Status: &archived}); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}

	if e.calendar != nil && mapping.CalendarEventID != "" {
		if err := e.calendar.DeleteAppointment(ctx, mapping.CalendarEventID); err != nil {
			zap.L().Error("Failed to remove calendar event for archived opportunity",
				zap.String("opportunityID", mapping.OpportunityID), zap.Error(err))
		}
	}

	if err := e.mappings.DeleteByCard(ctx, cfg.TenantID, cardID); err != nil {
		return nil, mapping.OpportunityID, nil, err
	}

	return map[string]any{"status": string(archived)}, mapping.OpportunityID, nil, nil
}
