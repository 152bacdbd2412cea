package trellosync_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/database"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/testutils"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeBoard is an in-memory Trello board.
type fakeBoard struct {
	mu sync.Mutex

	cards    map[string]*models.TrelloCard
	comments map[string][]string
	webhooks map[string]string
	nextID   int

	creates int
	updates int

	failGet           error
	failCreate        error
	failUpdate        error
	failDeleteWebhook error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		cards:    map[string]*models.TrelloCard{},
		comments: map[string][]string{},
		webhooks: map[string]string{},
	}
}

func notFound() error {
	return &integrations.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
}

func (b *fakeBoard) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s_%d", prefix, b.nextID)
}

func (b *fakeBoard) put(card models.TrelloCard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := card
	b.cards[card.ID] = &c
}

func (b *fakeBoard) remove(cardID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cards, cardID)
}

func (b *fakeBoard) card(cardID string) (models.TrelloCard, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cards[cardID]
	if !ok {
		return models.TrelloCard{}, false
	}
	return *c, true
}

func (b *fakeBoard) cardCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cards)
}

func (b *fakeBoard) GetMe(ctx context.Context) (*models.TrelloMember, error) {
	return &models.TrelloMember{ID: "member_1", Username: "clinic"}, nil
}

func (b *fakeBoard) GetBoards(ctx context.Context) ([]models.TrelloBoard, error) {
	return []models.TrelloBoard{{ID: "board_1", Name: "Reativação"}}, nil
}

func (b *fakeBoard) GetLists(ctx context.Context, boardID string) ([]models.TrelloList, error) {
	return []models.TrelloList{{ID: "list_new", Name: "Novos", IDBoard: boardID}}, nil
}

func (b *fakeBoard) GetCard(ctx context.Context, cardID string) (*models.TrelloCard, error) {
	if b.failGet != nil {
		return nil, b.failGet
	}
	c, ok := b.card(cardID)
	if !ok {
		return nil, notFound()
	}
	return &c, nil
}

func (b *fakeBoard) CreateCard(ctx context.Context, input models.TrelloCardInput) (*models.TrelloCard, error) {
	if b.failCreate != nil {
		return nil, b.failCreate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	card := &models.TrelloCard{
		ID:      b.id("card"),
		Name:    input.Name,
		Desc:    input.Desc,
		IDList:  input.ListID,
		IDBoard: "board_1",
	}
	if input.Due != nil {
		card.Due = input.Due.Format(time.RFC3339)
	}
	b.cards[card.ID] = card
	c := *card
	return &c, nil
}

func (b *fakeBoard) UpdateCard(ctx context.Context, cardID string, input models.TrelloCardInput) (*models.TrelloCard, error) {
	if b.failUpdate != nil {
		return nil, b.failUpdate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	card, ok := b.cards[cardID]
	if !ok {
		return nil, notFound()
	}
	b.updates++
	card.Name = input.Name
	card.Desc = input.Desc
	if input.ListID != "" {
		card.IDList = input.ListID
	}
	card.Due = ""
	if input.Due != nil {
		card.Due = input.Due.Format(time.RFC3339)
	}
	c := *card
	return &c, nil
}

func (b *fakeBoard) AddComment(ctx context.Context, cardID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.comments[cardID] = append(b.comments[cardID], text)
	return nil
}

func (b *fakeBoard) RegisterWebhook(ctx context.Context, boardID, callbackURL, description string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id("wh")
	b.webhooks[id] = boardID
	return id, nil
}

func (b *fakeBoard) DeleteWebhook(ctx context.Context, webhookID string) error {
	if b.failDeleteWebhook != nil {
		return b.failDeleteWebhook
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.webhooks[webhookID]; !ok {
		return notFound()
	}
	delete(b.webhooks, webhookID)
	return nil
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) UpsertAppointment(ctx context.Context, appt models.Appointment, eventID string) (string, error) {
	args := m.Called(ctx, appt, eventID)
	return args.String(0), args.Error(1)
}

func (m *mockCalendar) DeleteAppointment(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

var testLists = models.StatusListMapping{
	models.StatusNew:       "list_new",
	models.StatusSent:      "list_sent",
	models.StatusResponded: "list_responded",
	models.StatusScheduled: "list_scheduled",
	models.StatusArchived:  "list_archived",
}

var fixedNow = time.Date(2024, 2, 20, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db            *gorm.DB
	boards        map[string]*fakeBoard // keyed by API key
	configs       *database.ConfigsRepository
	mappings      *database.MappingsRepository
	opportunities *database.OpportunitiesRepository
	logs          *database.SyncLogsRepository
	engine        *trellosync.Engine
}

func newFixture(t *testing.T, opts ...trellosync.Option) *fixture {
	t.Helper()
	db := testutils.NewTestDB(t)

	f := &fixture{
		db:            db,
		boards:        map[string]*fakeBoard{},
		configs:       database.NewConfigsRepository(db),
		mappings:      database.NewMappingsRepository(db),
		opportunities: database.NewOpportunitiesRepository(db),
		logs:          database.NewSyncLogsRepository(db),
	}
	opts = append([]trellosync.Option{trellosync.WithClock(func() time.Time { return fixedNow })}, opts...)
	f.engine = trellosync.NewEngine(f.configs, f.mappings, f.opportunities, f.logs, f.remote, opts...)
	return f
}

func (f *fixture) remote(apiKey, apiToken string) trellosync.Remote {
	board, ok := f.boards[apiKey]
	if !ok {
		board = newFakeBoard()
		f.boards[apiKey] = board
	}
	return board
}

// addTenant stores a sync-enabled config for tenantID on board_1 and returns its fake board.
func (f *fixture) addTenant(t *testing.T, tenantID string, lists models.StatusListMapping) *fakeBoard {
	t.Helper()
	cfg := &models.TrelloConfig{
		TenantID:    tenantID,
		APIKey:      "key_" + tenantID,
		APIToken:    "token_" + tenantID,
		BoardID:     "board_1",
		BoardName:   "Reativação",
		SyncEnabled: true,
	}
	cfg.SetLists(lists)
	require.NoError(t, f.configs.SaveConfig(context.Background(), cfg))
	return f.remote(cfg.APIKey, cfg.APIToken).(*fakeBoard)
}

func (f *fixture) createOpportunity(t *testing.T, opp *models.Opportunity) *models.Opportunity {
	t.Helper()
	require.NoError(t, f.opportunities.CreateOpportunity(context.Background(), opp))
	return opp
}

func (f *fixture) opportunity(t *testing.T, tenantID, id string) *models.Opportunity {
	t.Helper()
	got, err := f.opportunities.GetOpportunity(context.Background(), tenantID, id)
	require.NoError(t, err)
	opp, ok := got.Get()
	require.True(t, ok, "opportunity %s not found", id)
	return opp
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) syncLogs(t *testing.T, tenantID string) []*models.SyncLog {
	t.Helper()
	entries, err := f.logs.ListSyncLogs(context.Background(), tenantID, 100)
	require.NoError(t, err)
	return entries
}
