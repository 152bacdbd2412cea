package trellosync

import (
	"context"
	"fmt"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

const webhookDescription = "CRM patient reactivation sync"

type ConfigInput struct {
	APIKey      string                   `json:"api_key"`
	APIToken    string                   `json:"api_token"`
	BoardID     string                   `json:"board_id"`
	BoardName   string                   `json:"board_name"`
	SyncEnabled bool                     `json:"sync_enabled"`
	ListMapping models.StatusListMapping `json:"list_mapping"`
}

// Settings manages per-tenant Trello configuration and the board webhook
// that comes with it.
type Settings struct {
	configs     ConfigRepository
	remote      RemoteFactory
	callbackURL string
}

func NewSettings(configs ConfigRepository, remote RemoteFactory, callbackURL string) *Settings {
	return &Settings{configs: configs, remote: remote, callbackURL: callbackURL}
}

func (s *Settings) GetConfig(ctx context.Context, tenantID string) (mo.Option[*models.TrelloConfig], error) {
	return s.configs.GetConfig(ctx, tenantID)
}

func validateInput(in ConfigInput) error {
	if !in.SyncEnabled {
		return nil
	}
	if in.APIKey == "" || in.APIToken == "" || in.BoardID == "" {
		return fmt.Errorf("%w: api key, token and board are required to enable sync", ErrNotConfigured)
	}
	if missing := in.ListMapping.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnmappedStatus, missing)
	}
	return nil
}

// SaveConfig stores the tenant's configuration. Any webhook registered by the
// previous configuration is torn down first; a new one is registered when sync
// is enabled and a callback URL is configured.
func (s *Settings) SaveConfig(ctx context.Context, tenantID string, in ConfigInput) (*models.TrelloConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id cannot be empty")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	previous, err := s.configs.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if prev, ok := previous.Get(); ok {
		if err := s.teardownWebhook(ctx, prev); err != nil {
			return nil, err
		}
	}

	lists := models.StatusListMapping{}
	for status, listID := range in.ListMapping {
		if status.Valid() && listID != "" {
			lists[status] = listID
		}
	}

	cfg := &models.TrelloConfig{
		TenantID:    tenantID,
		APIKey:      in.APIKey,
		APIToken:    in.APIToken,
		BoardID:     in.BoardID,
		BoardName:   in.BoardName,
		SyncEnabled: in.SyncEnabled,
	}
	cfg.SetLists(lists)
	if prev, ok := previous.Get(); ok {
		cfg.CreatedAt = prev.CreatedAt
	}

	if cfg.SyncEnabled && s.callbackURL != "" {
		webhookID, err := s.remote(cfg.APIKey, cfg.APIToken).RegisterWebhook(ctx, cfg.BoardID, s.callbackURL, webhookDescription)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to register webhook: %w", ErrRemoteUnavailable, err)
		}
		cfg.WebhookID = &webhookID
	} else if cfg.SyncEnabled {
		zap.L().Warn("No webhook callback URL configured; board changes will not be received", zap.String("tenantID", tenantID))
	}

	if err := s.configs.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	zap.L().Info("Saved Trello config",
		zap.String("tenantID", tenantID),
		zap.String("boardID", cfg.BoardID),
		zap.Bool("syncEnabled", cfg.SyncEnabled))
	return cfg, nil
}

// DisableSync removes the webhook and turns sync off, keeping credentials and mapping.
func (s *Settings) DisableSync(ctx context.Context, tenantID string) error {
	found, err := s.configs.GetConfig(ctx, tenantID)
	if err != nil {
		return err
	}
	cfg, ok := found.Get()
	if !ok {
		return ErrNotConfigured
	}

	if err := s.teardownWebhook(ctx, cfg); err != nil {
		return err
	}
	cfg.WebhookID = nil
	cfg.SyncEnabled = false

	return s.configs.SaveConfig(ctx, cfg)
}

// teardownWebhook deletes cfg's webhook. A webhook Trello no longer knows
// about, or one whose token was revoked, counts as gone.
func (s *Settings) teardownWebhook(ctx context.Context, cfg *models.TrelloConfig) error {
	if cfg.WebhookID == nil || *cfg.WebhookID == "" {
		return nil
	}

	err := s.remote(cfg.APIKey, cfg.APIToken).DeleteWebhook(ctx, *cfg.WebhookID)
	if err != nil {
		if integrations.IsNotFound(err) || integrations.IsUnauthorized(err) {
			zap.L().Info("Previous webhook already gone", zap.String("tenantID", cfg.TenantID), zap.String("webhookID", *cfg.WebhookID))
			return nil
		}
		return fmt.Errorf("%w: failed to delete previous webhook: %w", ErrRemoteUnavailable, err)
	}
	return nil
}

// TestConnection checks a key/token pair before it is saved.
func (s *Settings) TestConnection(ctx context.Context, apiKey, apiToken string) (*models.TrelloMember, error) {
	if apiKey == "" || apiToken == "" {
		return nil, ErrNotConfigured
	}
	member, err := s.remote(apiKey, apiToken).GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return member, nil
}

func (s *Settings) credentials(ctx context.Context, tenantID string) (*models.TrelloConfig, error) {
	found, err := s.configs.GetConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg, ok := found.Get()
	if !ok || cfg.APIKey == "" || cfg.APIToken == "" {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

func (s *Settings) ListBoards(ctx context.Context, tenantID string) ([]models.TrelloBoard, error) {
	cfg, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	boards, err := s.remote(cfg.APIKey, cfg.APIToken).GetBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return boards, nil
}

func (s *Settings) ListLists(ctx context.Context, tenantID, boardID string) ([]models.TrelloList, error) {
	cfg, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if boardID == "" {
		boardID = cfg.BoardID
	}
	lists, err := s.remote(cfg.APIKey, cfg.APIToken).GetLists(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	return lists, nil
}
