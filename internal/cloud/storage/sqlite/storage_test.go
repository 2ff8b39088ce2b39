package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/models"
)

var baseTime = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestStorage создает in-memory хранилище с примененными миграциями
func setupTestStorage(t *testing.T, opts ...Option) (*Storage, func()) {
	t.Helper()

	opts = append([]Option{WithClock(func() time.Time { return baseTime })}, opts...)
	s, err := New(context.Background(), ":memory:", testLogger(), opts...)
	require.NoError(t, err)

	return s, func() {
		s.Close()
	}
}

func createTestAccount(t *testing.T, ctx context.Context, s *Storage, deviceID string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(ctx, &storage.Account{
		DeviceID:    deviceID,
		AuthKeyHash: "hash-" + deviceID,
		PublicSalt:  "salt-" + deviceID,
		CreatedAt:   baseTime,
	}))
}

func TestNew_RejectsInvalidBusinessKeys(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]string
	}{
		{name: "unknown table", keys: map[string]string{"products": "sku"}},
		{name: "bad field", keys: map[string]string{models.TableOrders: "order number"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), ":memory:", testLogger(), WithBusinessKeys(tt.keys))
			assert.Error(t, err)
		})
	}
}

func TestStorage_Ping(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Probe(context.Background()))
}

func TestAccountStorage(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestAccount(t, ctx, s, "pos-1")

	t.Run("duplicate", func(t *testing.T) {
		err := s.CreateAccount(ctx, &storage.Account{DeviceID: "pos-1", AuthKeyHash: "x", PublicSalt: "y", CreatedAt: baseTime})
		assert.ErrorIs(t, err, storage.ErrAccountExists)
	})

	t.Run("get", func(t *testing.T) {
		acc, err := s.GetAccount(ctx, "pos-1")
		require.NoError(t, err)
		assert.Equal(t, "hash-pos-1", acc.AuthKeyHash)
		assert.Equal(t, "salt-pos-1", acc.PublicSalt)
		assert.True(t, acc.CreatedAt.Equal(baseTime))
		assert.Nil(t, acc.LastLogin)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.GetAccount(ctx, "pos-404")
		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	})

	t.Run("last login", func(t *testing.T) {
		at := baseTime.Add(time.Hour)
		require.NoError(t, s.UpdateLastLogin(ctx, "pos-1", at))

		acc, err := s.GetAccount(ctx, "pos-1")
		require.NoError(t, err)
		require.NotNil(t, acc.LastLogin)
		assert.True(t, acc.LastLogin.Equal(at))

		assert.ErrorIs(t, s.UpdateLastLogin(ctx, "pos-404", at), storage.ErrAccountNotFound)
	})

	t.Run("list", func(t *testing.T) {
		createTestAccount(t, ctx, s, "pos-2")
		accounts, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "pos-1", accounts[0].DeviceID)
		assert.Equal(t, "pos-2", accounts[1].DeviceID)
	})

	t.Run("delete cascades tokens", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &storage.RefreshToken{
			Token: "tok-2", DeviceID: "pos-2", ExpiresAt: baseTime.Add(time.Hour), CreatedAt: baseTime,
		}))
		require.NoError(t, s.DeleteAccount(ctx, "pos-2"))

		_, err := s.GetRefreshToken(ctx, "tok-2")
		assert.ErrorIs(t, err, storage.ErrTokenNotFound)
		assert.ErrorIs(t, s.DeleteAccount(ctx, "pos-2"), storage.ErrAccountNotFound)
	})
}

func TestTokenStorage(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestAccount(t, ctx, s, "pos-1")

	tokens := []*storage.RefreshToken{
		{Token: "live-1", DeviceID: "pos-1", ExpiresAt: baseTime.Add(time.Hour), CreatedAt: baseTime},
		{Token: "live-2", DeviceID: "pos-1", ExpiresAt: baseTime.Add(2 * time.Hour), CreatedAt: baseTime},
		{Token: "dead", DeviceID: "pos-1", ExpiresAt: baseTime.Add(-time.Minute), CreatedAt: baseTime.Add(-time.Hour)},
	}
	for _, tok := range tokens {
		require.NoError(t, s.SaveRefreshToken(ctx, tok))
	}

	got, err := s.GetRefreshToken(ctx, "live-1")
	require.NoError(t, err)
	assert.Equal(t, "pos-1", got.DeviceID)
	assert.True(t, got.ExpiresAt.Equal(baseTime.Add(time.Hour)))

	n, err := s.DeleteExpiredTokens(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetRefreshToken(ctx, "dead")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	require.NoError(t, s.DeleteRefreshToken(ctx, "live-1"))
	assert.ErrorIs(t, s.DeleteRefreshToken(ctx, "live-1"), storage.ErrTokenNotFound)

	n, err = s.DeleteDeviceTokens(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTokenStorage_UnknownDevice(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.SaveRefreshToken(context.Background(), &storage.RefreshToken{
		Token: "orphan", DeviceID: "pos-404", ExpiresAt: baseTime, CreatedAt: baseTime,
	})
	assert.Error(t, err)
}
