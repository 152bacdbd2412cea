package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/api"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/database"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/integrations"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/testutils"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/trellosync"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubTrello is a minimal in-memory Trello shared by every tenant.
type stubTrello struct {
	mu       sync.Mutex
	cards    map[string]*models.TrelloCard
	webhooks map[string]string
	nextID   int

	failWrites error
}

func newStubTrello() *stubTrello {
	return &stubTrello{cards: map[string]*models.TrelloCard{}, webhooks: map[string]string{}}
}

func (s *stubTrello) GetMe(ctx context.Context) (*models.TrelloMember, error) {
	return &models.TrelloMember{ID: "member_1", Username: "clinic", FullName: "Clínica Sorriso"}, nil
}

func (s *stubTrello) GetBoards(ctx context.Context) ([]models.TrelloBoard, error) {
	return []models.TrelloBoard{{ID: "board_1", Name: "Reativação"}}, nil
}

func (s *stubTrello) GetLists(ctx context.Context, boardID string) ([]models.TrelloList, error) {
	return []models.TrelloList{
		{ID: "list_new", Name: "Novos", IDBoard: boardID},
		{ID: "list_sent", Name: "Enviados", IDBoard: boardID},
	}, nil
}

func (s *stubTrello) GetCard(ctx context.Context, cardID string) (*models.TrelloCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok {
		return nil, &integrations.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	c := *card
	return &c, nil
}

func (s *stubTrello) CreateCard(ctx context.Context, input models.TrelloCardInput) (*models.TrelloCard, error) {
	if s.failWrites != nil {
		return nil, s.failWrites
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	card := &models.TrelloCard{ID: fmt.Sprintf("card_%d", s.nextID), Name: input.Name, Desc: input.Desc, IDList: input.ListID, IDBoard: "board_1"}
	s.cards[card.ID] = card
	c := *card
	return &c, nil
}

func (s *stubTrello) UpdateCard(ctx context.Context, cardID string, input models.TrelloCardInput) (*models.TrelloCard, error) {
	if s.failWrites != nil {
		return nil, s.failWrites
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok {
		return nil, &integrations.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	card.Name, card.Desc = input.Name, input.Desc
	if input.ListID != "" {
		card.IDList = input.ListID
	}
	c := *card
	return &c, nil
}

func (s *stubTrello) AddComment(ctx context.Context, cardID, text string) error {
	return nil
}

func (s *stubTrello) RegisterWebhook(ctx context.Context, boardID, callbackURL, description string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("wh_%d", s.nextID)
	s.webhooks[id] = boardID
	return id, nil
}

func (s *stubTrello) DeleteWebhook(ctx context.Context, webhookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[webhookID]; !ok {
		return &integrations.APIError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	delete(s.webhooks, webhookID)
	return nil
}

var allLists = models.StatusListMapping{
	models.StatusNew:       "list_new",
	models.StatusSent:      "list_sent",
	models.StatusResponded: "list_responded",
	models.StatusScheduled: "list_scheduled",
	models.StatusArchived:  "list_archived",
}

type testEnv struct {
	db            *gorm.DB
	trello        *stubTrello
	router        *gin.Engine
	configs       *database.ConfigsRepository
	opportunities *database.OpportunitiesRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutils.NewTestDB(t)
	trello := newStubTrello()
	remote := func(apiKey, apiToken string) trellosync.Remote { return trello }

	configs := database.NewConfigsRepository(db)
	opportunities := database.NewOpportunitiesRepository(db)
	logs := database.NewSyncLogsRepository(db)

	h := &api.Handler{
		DB:            db,
		Engine:        trellosync.NewEngine(configs, database.NewMappingsRepository(db), opportunities, logs, remote),
		Settings:      trellosync.NewSettings(configs, remote, "https://crm.example.com/api/trello/webhook"),
		Opportunities: opportunities,
		SyncLogs:      logs,
		Workers:       make(chan struct{}, 2),
	}
	router := api.NewRouter(zap.NewNop(), h, api.RouterConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		Tokens:         map[string]string{"token-a": "tenant_a", "token-b": "tenant_b"},
	})

	return &testEnv{db: db, trello: trello, router: router, configs: configs, opportunities: opportunities}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) configure(t *testing.T, token string) {
	t.Helper()
	w := e.do(t, http.MethodPut, "/api/trello/config", token, map[string]any{
		"api_key":      "key-1234567890",
		"api_token":    "token-abcdefghij",
		"board_id":     "board_1",
		"board_name":   "Reativação",
		"sync_enabled": true,
		"list_mapping": allLists,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
