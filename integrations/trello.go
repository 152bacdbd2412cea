package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultTrelloBaseURL = "https://api.trello.com/1"
	defaultRetryAttempts = 3
	defaultRetryDelay    = 250 * time.Millisecond
)

// APIError is returned for any non-2xx response from Trello.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello API returned non-2xx status: %s, body: %s", e.Status, e.Body)
}

func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	return statusCode(err) == http.StatusUnauthorized
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// isRetryableCreate limits retries of non-idempotent POSTs to failures that
// cannot have created anything on Trello's side.
func isRetryableCreate(err error) bool {
	if statusCode(err) == http.StatusTooManyRequests {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

type TrelloClient struct {
	Client        *http.Client
	APIKey        string
	APIToken      string
	BaseURL       string
	RetryAttempts uint
	RetryDelay    time.Duration
}

type TrelloOption func(*TrelloClient)

func WithBaseURL(baseURL string) TrelloOption {
	return func(tc *TrelloClient) {
		if baseURL != "" {
			tc.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) TrelloOption {
	return func(tc *TrelloClient) {
		if client != nil {
			tc.Client = client
		}
	}
}

func WithRetry(attempts uint, delay time.Duration) TrelloOption {
	return func(tc *TrelloClient) {
		if attempts > 0 {
			tc.RetryAttempts = attempts
		}
		if delay > 0 {
			tc.RetryDelay = delay
		}
	}
}

func NewTrelloClient(key, token string, opts ...TrelloOption) *TrelloClient {
	tc := &TrelloClient{
		Client:        &http.Client{Timeout: 15 * time.Second},
		APIKey:        key,
		APIToken:      token,
		BaseURL:       DefaultTrelloBaseURL,
		RetryAttempts: defaultRetryAttempts,
		RetryDelay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// do sends an authenticated request. GET, PUT and DELETE are retried on
// transport failures, 429 and 5xx; POST only on 429 or a failed dial.
// GET and DELETE carry params in the query string; POST and PUT as a form body.
func (tc *TrelloClient) do(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", tc.APIKey)
	params.Set("token", tc.APIToken)

	retryIf := isTransient
	if method == http.MethodPost {
		retryIf = isRetryableCreate
	}

	return retry.Do(
		func() error {
			return tc.doOnce(ctx, method, path, params, out)
		},
		retry.Context(ctx),
		retry.Attempts(tc.RetryAttempts),
		retry.Delay(tc.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("Retrying Trello request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}

func (tc *TrelloClient) doOnce(ctx context.Context, method, path string, params url.Values, out any) error {
	apiURL := tc.BaseURL + path

	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut {
		body = bytes.NewBufferString(params.Encode())
	} else {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", strings.ToLower(method), err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(bodyBytes)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Trello response: %w", err)
	}
	return nil
}

// GetMe returns the member owning the token. Used as a connection test.
func (tc *TrelloClient) GetMe(ctx context.Context) (*models.TrelloMember, error) {
	var member models.TrelloMember
	params := url.Values{"fields": {"id,username,fullName"}}
	if err := tc.do(ctx, http.MethodGet, "/members/me", params, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (tc *TrelloClient) GetBoards(ctx context.Context) ([]models.TrelloBoard, error) {
	var boards []models.TrelloBoard
	params := url.Values{"filter": {"open"}, "fields": {"id,name,url,closed"}}
	if err := tc.do(ctx, http.MethodGet, "/members/me/boards", params, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

func (tc *TrelloClient) GetLists(ctx context.Context, boardID string) ([]models.TrelloList, error) {
	var lists []models.TrelloList
	params := url.Values{"filter": {"open"}}
	if err := tc.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", params, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (tc *TrelloClient) GetCard(ctx context.Context, cardID string) (*models.TrelloCard, error) {
	var card models.TrelloCard
	params := url.Values{"fields": {"id,name,desc,idList,idBoard,due,shortLink,url,closed"}}
	if err := tc.do(ctx, http.MethodGet, "/cards/"+url.PathEscape(cardID), params, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func cardParams(input models.TrelloCardInput) url.Values {
	params := url.Values{}
	params.Set("name", input.Name)
	params.Set("desc", input.Desc)
	if input.ListID != "" {
		params.Set("idList", input.ListID)
	}
	if input.Due != nil {
		params.Set("due", input.Due.UTC().Format(time.RFC3339))
	}
	return params
}

// updateCardParams always carries due; an empty value clears it on Trello.
func updateCardParams(input models.TrelloCardInput) url.Values {
	params := cardParams(input)
	if input.Due == nil {
		params.Set("due", "")
	}
	return params
}

func (tc *TrelloClient) CreateCard(ctx context.Context, input models.TrelloCardInput) (*models.TrelloCard, error) {
	if input.ListID == "" {
		return nil, fmt.Errorf("list id is required to create a card")
	}

	params := cardParams(input)
	params.Set("pos", "top")

	var card models.TrelloCard
	if err := tc.do(ctx, http.MethodPost, "/cards", params, &card); err != nil {
		return nil, err
	}

	zap.L().Debug("Created Trello card", zap.String("cardID", card.ID), zap.String("listID", card.IDList))
	return &card, nil
}

func (tc *TrelloClient) UpdateCard(ctx context.Context, cardID string, input models.TrelloCardInput) (*models.TrelloCard, error) {
	var card models.TrelloCard
	if err := tc.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(cardID), updateCardParams(input), &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (tc *TrelloClient) AddComment(ctx context.Context, cardID, text string) error {
	params := url.Values{"text": {text}}
	return tc.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/actions/comments", params, nil)
}

func (tc *TrelloClient) RegisterWebhook(ctx context.Context, boardID, callbackURL, description string) (string, error) {
	params := url.Values{}
	params.Set("callbackURL", callbackURL)
	params.Set("idModel", boardID)
	params.Set("description", description)

	var webhook struct {
		ID string `json:"id"`
	}
	if err := tc.do(ctx, http.MethodPost, "/webhooks/", params, &webhook); err != nil {
		return "", err
	}

	zap.L().Info("Successfully registered webhook", zap.String("webhookID", webhook.ID), zap.String("boardID", boardID))
	return webhook.ID, nil
}

func (tc *TrelloClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	if err := tc.do(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(webhookID), nil, nil); err != nil {
		return err
	}

	zap.L().Info("Successfully deleted webhook", zap.String("webhookID", webhookID))
	return nil
}
