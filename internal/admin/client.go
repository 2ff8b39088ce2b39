package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/pkg/api"
)

// APIError ответ административного API с кодом вне 2xx
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("admin API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("admin API request failed with status %d", e.StatusCode)
}

// Client HTTP клиент административного API работающего терминала
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает клиент. token - admin JWT.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Status GET /api/v1/sync/status
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Statistics GET /api/v1/sync/statistics
func (c *Client) Statistics(ctx context.Context) (*api.StatisticsResponse, error) {
	var resp api.StatisticsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/sync/statistics", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForceSync POST /api/v1/sync/force
func (c *Client) ForceSync(ctx context.Context) (*api.PassResponse, error) {
	var resp api.PassResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/force", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryFailed POST /api/v1/sync/failed/retry
func (c *Client) RetryFailed(ctx context.Context) (int, error) {
	return c.count(ctx, http.MethodPost, "/api/v1/sync/failed/retry")
}

// ClearFailed POST /api/v1/sync/failed/clear
func (c *Client) ClearFailed(ctx context.Context) (int, error) {
	return c.count(ctx, http.MethodPost, "/api/v1/sync/failed/clear")
}

// ClearLegacy DELETE /api/v1/sync/legacy/{table}
func (c *Client) ClearLegacy(ctx context.Context, table string) (int, error) {
	return c.count(ctx, http.MethodDelete, "/api/v1/sync/legacy/"+url.PathEscape(table))
}

// Conflicts GET /api/v1/sync/conflicts; all включает разрешенные
func (c *Client) Conflicts(ctx context.Context, all bool) ([]*models.DataConflict, error) {
	path := "/api/v1/sync/conflicts"
	if all {
		path += "?all=true"
	}
	var resp []*models.DataConflict
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Resolve POST /api/v1/sync/conflicts/{id}/resolve
func (c *Client) Resolve(ctx context.Context, id string, req api.ResolveRequest) error {
	return c.doRequest(ctx, http.MethodPost, "/api/v1/sync/conflicts/"+url.PathEscape(id)+"/resolve", req, nil)
}

// Devices GET /api/v1/devices
func (c *Client) Devices(ctx context.Context) ([]*models.DeviceInfo, error) {
	var resp []*models.DeviceInfo
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RegisterDevice POST /api/v1/devices
func (c *Client) RegisterDevice(ctx context.Context, req api.DeviceRequest) (*models.DeviceInfo, error) {
	var resp models.DeviceInfo
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/devices", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) count(ctx context.Context, method, path string) (int, error) {
	var resp api.CountResponse
	if err := c.doRequest(ctx, method, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Error
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
