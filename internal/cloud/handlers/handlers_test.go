package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/cloud/storage/sqlite"
	"github.com/iudanet/possync/internal/credentials"
	"github.com/iudanet/possync/internal/crypto"
	"github.com/iudanet/possync/internal/middleware"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/remote/httpapi"
	"github.com/iudanet/possync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJWT() authtoken.Config {
	return authtoken.Config{
		Issuer:          "possync-cloud-test",
		Secret:          []byte("cloud-test-secret-key-0123456789abcdef"),
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

type testCloud struct {
	store  *sqlite.Storage
	auth   *AuthHandler
	server *httptest.Server
}

func setupCloud(t *testing.T) *testCloud {
	t.Helper()
	logger := testLogger()

	st, err := sqlite.New(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	limiter := middleware.NewRateLimiter(1000, time.Minute, logger)
	t.Cleanup(limiter.Stop)

	auth := NewAuthHandler(logger, st, st, testJWT())
	handler := Routes(auth, NewRecordsHandler(logger, st), NewHealthHandler(logger, st, "test"), testJWT(), limiter, logger)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testCloud{store: st, auth: auth, server: srv}
}

func (c *testCloud) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// register регистрирует устройство напрямую и возвращает пару токенов
func (c *testCloud) register(t *testing.T, deviceID, hash string) api.TokenResponse {
	t.Helper()

	resp := c.do(t, http.MethodPost, "/api/v1/auth/register", "", api.RegisterRequest{
		DeviceID: deviceID, AuthKeyHash: hash, PublicSalt: "c2FsdA==",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/api/v1/auth/login", "", api.LoginRequest{DeviceID: deviceID, AuthKeyHash: hash})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[api.TokenResponse](t, resp)
}

func TestAuthHandler_Register(t *testing.T) {
	c := setupCloud(t)
	c.register(t, "pos-1", "hash-1")

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "duplicate", body: api.RegisterRequest{DeviceID: "pos-1", AuthKeyHash: "h", PublicSalt: "s"}, want: http.StatusConflict},
		{name: "bad device id", body: api.RegisterRequest{DeviceID: "p!", AuthKeyHash: "h", PublicSalt: "s"}, want: http.StatusBadRequest},
		{name: "missing hash", body: api.RegisterRequest{DeviceID: "pos-2", PublicSalt: "s"}, want: http.StatusBadRequest},
		{name: "missing salt", body: api.RegisterRequest{DeviceID: "pos-2", AuthKeyHash: "h"}, want: http.StatusBadRequest},
		{name: "garbage", body: "not an object", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuthHandler_SaltAndLogin(t *testing.T) {
	c := setupCloud(t)
	c.register(t, "pos-1", "hash-1")

	resp := c.do(t, http.MethodGet, "/api/v1/auth/salt/pos-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c2FsdA==", decode[api.SaltResponse](t, resp).PublicSalt)

	resp = c.do(t, http.MethodGet, "/api/v1/auth/salt/pos-404", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	tests := []struct {
		name string
		req  api.LoginRequest
		want int
	}{
		{name: "wrong hash", req: api.LoginRequest{DeviceID: "pos-1", AuthKeyHash: "hash-2"}, want: http.StatusUnauthorized},
		{name: "unknown device", req: api.LoginRequest{DeviceID: "pos-404", AuthKeyHash: "hash-1"}, want: http.StatusUnauthorized},
		{name: "missing hash", req: api.LoginRequest{DeviceID: "pos-1"}, want: http.StatusBadRequest},
		{name: "ok", req: api.LoginRequest{DeviceID: "pos-1", AuthKeyHash: "hash-1"}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.req)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	acc, err := c.store.GetAccount(context.Background(), "pos-1")
	require.NoError(t, err)
	assert.NotNil(t, acc.LastLogin)
}

func TestAuthHandler_RefreshRotatesToken(t *testing.T) {
	c := setupCloud(t)
	tokens := c.register(t, "pos-1", "hash-1")

	claims, err := authtoken.ValidateAccessToken(testJWT(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", claims.DeviceID)
	assert.Equal(t, authtoken.RoleDevice, claims.Role)

	resp := c.do(t, http.MethodPost, "/api/v1/auth/refresh", tokens.RefreshToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[api.TokenResponse](t, resp)
	assert.NotEqual(t, tokens.RefreshToken, next.RefreshToken)

	// старый refresh token больше не действует
	resp = c.do(t, http.MethodPost, "/api/v1/auth/refresh", tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/api/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthHandler_RefreshExpired(t *testing.T) {
	c := setupCloud(t)
	// часы облака ушли вперед дальше срока жизни refresh token
	c.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	tokens := c.register(t, "pos-1", "hash-1")

	resp := c.do(t, http.MethodPost, "/api/v1/auth/refresh", tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthHandler_Logout(t *testing.T) {
	c := setupCloud(t)
	tokens := c.register(t, "pos-1", "hash-1")

	resp := c.do(t, http.MethodPost, "/api/v1/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/api/v1/auth/refresh", tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecordsHandler_Authorization(t *testing.T) {
	c := setupCloud(t)
	tokens := c.register(t, "pos-1", "hash-1")

	adminToken, _, err := authtoken.GenerateAccessToken(testJWT(), "operator", "pos-1", authtoken.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "garbage token", token: "garbage", want: http.StatusUnauthorized},
		{name: "admin role", token: adminToken, want: http.StatusForbidden},
		{name: "device", token: tokens.AccessToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(t, http.MethodGet, "/api/v1/tables/orders/records", tt.token, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRecordsHandler_Errors(t *testing.T) {
	c := setupCloud(t)
	token := c.register(t, "pos-1", "hash-1").AccessToken

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "unknown table list", method: http.MethodGet, path: "/api/v1/tables/products/records", want: http.StatusBadRequest},
		{name: "unknown table apply", method: http.MethodPost, path: "/api/v1/tables/products/apply",
			body: api.ApplyRequest{Operation: "INSERT", RecordID: "p-1"}, want: http.StatusBadRequest},
		{name: "bad table name", method: http.MethodPost, path: "/api/v1/tables/Orders/apply",
			body: api.ApplyRequest{Operation: "INSERT", RecordID: "o-1"}, want: http.StatusBadRequest},
		{name: "bad operation", method: http.MethodPost, path: "/api/v1/tables/orders/apply",
			body: api.ApplyRequest{Operation: "UPSERT", RecordID: "o-1"}, want: http.StatusBadRequest},
		{name: "garbage body", method: http.MethodPost, path: "/api/v1/tables/orders/apply", body: "x", want: http.StatusBadRequest},
		{name: "missing record", method: http.MethodGet, path: "/api/v1/tables/orders/records/o-404", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRecordsHandler_ConflictBody(t *testing.T) {
	c := setupCloud(t)
	token := c.register(t, "pos-1", "hash-1").AccessToken

	resp := c.do(t, http.MethodPost, "/api/v1/tables/orders/apply", token, api.ApplyRequest{
		Operation: "INSERT", RecordID: "o-1", Payload: map[string]any{"order_number": "A-1"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/api/v1/tables/orders/apply", token, api.ApplyRequest{
		Operation: "INSERT", RecordID: "o-2", Payload: map[string]any{"order_number": "A-1"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[api.ConflictResponse](t, resp)
	assert.Equal(t, "duplicate", body.Kind)
	assert.Equal(t, "o-1", body.Remote["id"])

	resp = c.do(t, http.MethodPost, "/api/v1/tables/orders/apply", token, api.ApplyRequest{
		Operation: "UPDATE", RecordID: "o-404", Payload: map[string]any{"total": 1},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[api.ConflictResponse](t, resp).Kind)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

func TestHealthHandler(t *testing.T) {
	c := setupCloud(t)

	resp := c.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[HealthResponse](t, resp).Status)

	h := NewHealthHandler(testLogger(), failingPinger{}, "test")
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Терминал регистрируется через credentials и реплицирует мутации через httpapi
func TestCloud_TerminalRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := setupCloud(t)

	keystore, err := credentials.OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	defer keystore.Close()

	authClient := httpapi.NewClient(c.server.URL)
	svc := credentials.NewService(authClient, keystore, c.server.URL, testLogger(),
		credentials.WithKDF(crypto.KDFParams{Time: 1, Memory: 1024, Threads: 1}))

	session, err := svc.Register(ctx, "pos-1", "counter-terminal-secret")
	require.NoError(t, err)

	backend := httpapi.NewClient(c.server.URL, httpapi.WithTokenSource(session))
	require.NoError(t, backend.Probe(ctx))

	require.NoError(t, backend.Apply(ctx, remote.ApplyRequest{
		Table:     models.TableOrders,
		Operation: models.OperationInsert,
		RecordID:  "o-1",
		Payload:   models.Record{"order_number": "A-1", "total": 12.5},
	}))

	err = backend.Apply(ctx, remote.ApplyRequest{
		Table:     models.TableOrders,
		Operation: models.OperationInsert,
		RecordID:  "o-2",
		Payload:   models.Record{"order_number": "A-1"},
	})
	ce, ok := remote.AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, remote.ConflictDuplicate, ce.Kind)
	assert.Equal(t, "o-1", ce.Remote.ID())

	rec, err := backend.Fetch(ctx, models.TableOrders, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, rec["total"])

	_, err = backend.Fetch(ctx, models.TableOrders, "o-404")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	list, err := backend.List(ctx, models.TableOrders)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// запись помечена устройством, которое ее отправило
	var updatedBy string
	require.NoError(t, c.store.DB().QueryRowContext(ctx,
		`SELECT updated_by FROM cloud_records WHERE table_name = ? AND id = ?`, models.TableOrders, "o-1").Scan(&updatedBy))
	assert.Equal(t, "pos-1", updatedBy)

	// после перезапуска терминал открывает токены без облака
	unlocked, err := svc.Unlock(ctx, "counter-terminal-secret")
	require.NoError(t, err)
	assert.Equal(t, "pos-1", unlocked.DeviceID())

	accounts, err := c.store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.NotEqual(t, "", accounts[0].AuthKeyHash)
}
