package trellosync_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackURL = "https://crm.example.com/api/trello/webhook"

func validInput() trellosync.ConfigInput {
	return trellosync.ConfigInput{
		APIKey:      "key_tenant_a",
		APIToken:    "token_tenant_a",
		BoardID:     "board_1",
		BoardName:   "Reativação",
		SyncEnabled: true,
		ListMapping: testLists,
	}
}

func TestSettings_SaveConfigRegistersWebhook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	cfg, err := settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)
	require.NotNil(t, cfg.WebhookID)

	board := f.boards["key_tenant_a"]
	assert.Equal(t, "board_1", board.webhooks[*cfg.WebhookID])

	got, err := settings.GetConfig(ctx, "tenant_a")
	require.NoError(t, err)
	stored := got.MustGet()
	assert.True(t, stored.SyncEnabled)
	assert.Equal(t, testLists, stored.Lists())
	assert.Equal(t, *cfg.WebhookID, *stored.WebhookID)
}

func TestSettings_SaveConfigReplacesPreviousWebhook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	first, err := settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)

	in := validInput()
	in.BoardName = "Reativação 2024"
	second, err := settings.SaveConfig(ctx, "tenant_a", in)
	require.NoError(t, err)

	board := f.boards["key_tenant_a"]
	assert.NotEqual(t, *first.WebhookID, *second.WebhookID)
	assert.NotContains(t, board.webhooks, *first.WebhookID)
	assert.Contains(t, board.webhooks, *second.WebhookID)
	assert.Len(t, board.webhooks, 1)
	assert.Equal(t, int64(1), f.count(t, &models.TrelloConfig{}))
}

func TestSettings_SaveConfigToleratesMissingWebhook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	first, err := settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)
	delete(f.boards["key_tenant_a"].webhooks, *first.WebhookID)

	_, err = settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)

	f.boards["key_tenant_a"].failDeleteWebhook = &integrations.APIError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}
	_, err = settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)
}

func TestSettings_SaveConfigAbortsWhenTeardownFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	first, err := settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)

	f.boards["key_tenant_a"].failDeleteWebhook = errors.New("connection reset by peer")
	in := validInput()
	in.BoardID = "board_2"
	_, err = settings.SaveConfig(ctx, "tenant_a", in)
	require.ErrorIs(t, err, trellosync.ErrRemoteUnavailable)

	got, err := settings.GetConfig(ctx, "tenant_a")
	require.NoError(t, err)
	stored := got.MustGet()
	assert.Equal(t, "board_1", stored.BoardID)
	assert.Equal(t, *first.WebhookID, *stored.WebhookID)
}

func TestSettings_SaveConfigWithoutCallbackURL(t *testing.T) {
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, "")

	cfg, err := settings.SaveConfig(context.Background(), "tenant_a", validInput())
	require.NoError(t, err)
	assert.Nil(t, cfg.WebhookID)
	assert.True(t, cfg.SyncEnabled)
}

func TestSettings_SaveConfigValidation(t *testing.T) {
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)
	ctx := context.Background()

	_, err := settings.SaveConfig(ctx, "", validInput())
	require.Error(t, err)

	noToken := validInput()
	noToken.APIToken = ""
	_, err = settings.SaveConfig(ctx, "tenant_a", noToken)
	require.ErrorIs(t, err, trellosync.ErrNotConfigured)

	partial := validInput()
	partial.ListMapping = models.StatusListMapping{models.StatusNew: "list_new"}
	_, err = settings.SaveConfig(ctx, "tenant_a", partial)
	require.ErrorIs(t, err, trellosync.ErrUnmappedStatus)
	assert.Contains(t, err.Error(), "SCHEDULED")

	// a disabled config may be incomplete
	draft := trellosync.ConfigInput{APIKey: "key_tenant_a", ListMapping: models.StatusListMapping{"BOGUS": "list_x", models.StatusNew: "list_new"}}
	cfg, err := settings.SaveConfig(ctx, "tenant_a", draft)
	require.NoError(t, err)
	assert.Nil(t, cfg.WebhookID)
	assert.Equal(t, models.StatusListMapping{models.StatusNew: "list_new"}, cfg.Lists())

	assert.Equal(t, int64(1), f.count(t, &models.TrelloConfig{}))
}

func TestSettings_DisableSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	require.ErrorIs(t, settings.DisableSync(ctx, "tenant_a"), trellosync.ErrNotConfigured)

	_, err := settings.SaveConfig(ctx, "tenant_a", validInput())
	require.NoError(t, err)
	require.NoError(t, settings.DisableSync(ctx, "tenant_a"))

	assert.Empty(t, f.boards["key_tenant_a"].webhooks)
	got, err := settings.GetConfig(ctx, "tenant_a")
	require.NoError(t, err)
	stored := got.MustGet()
	assert.False(t, stored.SyncEnabled)
	assert.Nil(t, stored.WebhookID)
	assert.Equal(t, "key_tenant_a", stored.APIKey)
	assert.Equal(t, testLists, stored.Lists())

	configs, err := f.configs.FindSyncConfigsByBoardID(ctx, "board_1")
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestSettings_RemoteQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	settings := trellosync.NewSettings(f.configs, f.remote, callbackURL)

	member, err := settings.TestConnection(ctx, "key_x", "token_x")
	require.NoError(t, err)
	assert.Equal(t, "clinic", member.Username)

	_, err = settings.TestConnection(ctx, "", "token_x")
	require.ErrorIs(t, err, trellosync.ErrNotConfigured)

	_, err = settings.ListBoards(ctx, "tenant_a")
	require.ErrorIs(t, err, trellosync.ErrNotConfigured)

	f.addTenant(t, "tenant_a", testLists)

	boards, err := settings.ListBoards(ctx, "tenant_a")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "board_1", boards[0].ID)

	lists, err := settings.ListLists(ctx, "tenant_a", "")
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "board_1", lists[0].IDBoard)

	lists, err = settings.ListLists(ctx, "tenant_a", "board_9")
	require.NoError(t, err)
	assert.Equal(t, "board_9", lists[0].IDBoard)
}
