package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/pkg/api"
)

// TokenSource выдает актуальный access token устройства
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StatusError ответ облака с кодом вне 2xx
type StatusError struct {
	Message    string
	Body       []byte
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, string(e.Body))
}

// Client представляет HTTP клиент облачного API
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

var _ remote.Backend = (*Client)(nil)

// Option настраивает Client
type Option func(*Client)

// WithTokenSource подключает bearer авторизацию к запросам данных
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTimeout задает общий таймаут HTTP клиента
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register регистрирует устройство в облаке
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// GetSalt получает public_salt устройства
func (c *Client) GetSalt(ctx context.Context, deviceID string) (*api.SaltResponse, error) {
	var resp api.SaltResponse
	path := "/api/v1/auth/salt/" + url.PathEscape(deviceID)
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("get salt request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию устройства
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", refreshToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Probe проверяет доступность облака
func (c *Client) Probe(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", "", nil, nil); err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	return nil
}

// Apply воспроизводит мутацию в облаке.
// 409 и 404 с телом ConflictResponse превращаются в *remote.ConflictError.
func (c *Client) Apply(ctx context.Context, req remote.ApplyRequest) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body := api.ApplyRequest{
		Operation: string(req.Operation),
		RecordID:  req.RecordID,
		Payload:   req.Payload,
		Overwrite: req.Overwrite,
	}

	path := "/api/v1/tables/" + url.PathEscape(req.Table) + "/apply"
	err = c.doRequest(ctx, http.MethodPost, path, token, body, nil)
	if err == nil {
		return nil
	}

	var se *StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusConflict || se.StatusCode == http.StatusNotFound) {
		var cr api.ConflictResponse
		if jsonErr := json.Unmarshal(se.Body, &cr); jsonErr == nil && cr.Kind != "" {
			return &remote.ConflictError{
				Kind:   remote.ConflictKind(cr.Kind),
				Remote: cr.Remote,
				Msg:    cr.Error,
			}
		}
	}

	return fmt.Errorf("apply %s %s failed: %w", req.Operation, req.Table, err)
}

// Fetch получает текущую облачную запись
func (c *Client) Fetch(ctx context.Context, table, id string) (models.Record, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp api.RecordResponse
	path := "/api/v1/tables/" + url.PathEscape(table) + "/records/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("fetch %s/%s failed: %w", table, id, err)
	}

	return models.Record(resp.Record), nil
}

// List получает все облачные записи таблицы
func (c *Client) List(ctx context.Context, table string) ([]models.Record, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp api.RecordsResponse
	path := "/api/v1/tables/" + url.PathEscape(table) + "/records"
	if err := c.doRequest(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s failed: %w", table, err)
	}

	records := make([]models.Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		records = append(records, models.Record(r))
	}
	return records, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: respBody}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			se.Message = errResp.Error
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", remote.ErrUnauthorized, se)
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
