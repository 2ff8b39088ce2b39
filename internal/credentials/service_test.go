package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/crypto"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/pkg/api"
)

var fastKDF = crypto.KDFParams{Time: 1, Memory: 1024, Threads: 1}

const testSecret = "counter-terminal-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := OpenKeystore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

// fakeCloud облачная сторона auth API поверх AuthAPIMock
type fakeCloud struct {
	mock      *AuthAPIMock
	salt      string
	hash      string
	refresh   string
	jwt       authtoken.Config
	issued    atomic.Int32
	rejectAll atomic.Bool
}

func newFakeCloud() *fakeCloud {
	c := &fakeCloud{
		jwt: authtoken.Config{
			Issuer:          "cloud-test",
			Secret:          []byte("cloud-secret"),
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
	}
	tokens := func(deviceID string) (*api.TokenResponse, error) {
		c.issued.Add(1)
		access, ttl, err := authtoken.GenerateAccessToken(c.jwt, deviceID, deviceID, authtoken.RoleDevice)
		if err != nil {
			return nil, err
		}
		c.refresh = fmt.Sprintf("refresh-%d", c.issued.Load())
		return &api.TokenResponse{AccessToken: access, RefreshToken: c.refresh, ExpiresIn: ttl}, nil
	}

	c.mock = &AuthAPIMock{
		RegisterFunc: func(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
			c.salt, c.hash = req.PublicSalt, req.AuthKeyHash
			return &api.RegisterResponse{DeviceID: req.DeviceID}, nil
		},
		GetSaltFunc: func(ctx context.Context, deviceID string) (*api.SaltResponse, error) {
			if c.salt == "" {
				return nil, remote.ErrNotFound
			}
			return &api.SaltResponse{PublicSalt: c.salt}, nil
		},
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
			if err := crypto.CompareAuthKeyHash(req.AuthKeyHash, c.hash); err != nil {
				return nil, remote.ErrUnauthorized
			}
			return tokens(req.DeviceID)
		},
		RefreshFunc: func(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
			if c.rejectAll.Load() || refreshToken != c.refresh {
				return nil, fmt.Errorf("refresh: %w", remote.ErrUnauthorized)
			}
			return tokens("pos-1")
		},
	}
	return c
}

func TestService_RegisterAndUnlock(t *testing.T) {
	ctx := context.Background()
	ks := setupKeystore(t)
	cloud := newFakeCloud()
	svc := NewService(cloud.mock, ks, "http://cloud", testLogger(), WithKDF(fastKDF))

	sess, err := svc.Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", sess.DeviceID())
	assert.Len(t, cloud.mock.LoginCalls(), 1)

	token, err := sess.Token(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, cloud.mock.RefreshCalls(), 0, "fresh token is reused")

	// токены в keystore запечатаны
	stored, err := ks.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.AccessToken), token)
	assert.Equal(t, "http://cloud", stored.CloudURL)

	// перезапуск терминала офлайн
	unlocked, err := svc.Unlock(ctx, testSecret)
	require.NoError(t, err)
	again, err := unlocked.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	_, err = svc.Unlock(ctx, "wrong-secret-value")
	assert.ErrorIs(t, err, ErrWrongSecret)

	id, err := svc.StoredDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", id)
}

func TestService_LoginWithWrongSecret(t *testing.T) {
	ctx := context.Background()
	cloud := newFakeCloud()
	svc := NewService(cloud.mock, setupKeystore(t), "", testLogger(), WithKDF(fastKDF))

	_, err := svc.Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "pos-1", "not-the-secret!")
	assert.ErrorIs(t, err, remote.ErrUnauthorized)

	_, err = svc.Login(ctx, "pos-1", testSecret)
	assert.NoError(t, err)
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	cloud := newFakeCloud()
	svc := NewService(cloud.mock, setupKeystore(t), "", testLogger(), WithKDF(fastKDF))

	_, err := svc.Register(ctx, "p", testSecret)
	assert.Error(t, err)
	_, err = svc.Register(ctx, "pos-1", "short")
	assert.Error(t, err)
	_, err = svc.Login(ctx, "pos-1", "")
	assert.Error(t, err)
	assert.Empty(t, cloud.mock.RegisterCalls())

	_, err = svc.Unlock(ctx, testSecret)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_RefreshAndRelogin(t *testing.T) {
	ctx := context.Background()
	cloud := newFakeCloud()

	now := time.Now()
	clock := func() time.Time { return now }
	svc := NewService(cloud.mock, setupKeystore(t), "", testLogger(), WithKDF(fastKDF), WithClock(clock))

	sess, err := svc.Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)
	_, err = sess.Token(ctx)
	require.NoError(t, err)

	// токен близок к истечению: обновление через refresh token
	now = now.Add(45 * time.Second)
	_, err = sess.Token(ctx)
	require.NoError(t, err)
	assert.Len(t, cloud.mock.RefreshCalls(), 1)
	assert.Len(t, cloud.mock.LoginCalls(), 1)

	// облако отвергает refresh: повторный вход по auth key
	cloud.rejectAll.Store(true)
	now = now.Add(2 * time.Minute)
	third, err := sess.Token(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, third)
	assert.Len(t, cloud.mock.LoginCalls(), 2)
}

func TestSession_RefreshTransientError(t *testing.T) {
	ctx := context.Background()
	cloud := newFakeCloud()

	now := time.Now()
	svc := NewService(cloud.mock, setupKeystore(t), "", testLogger(), WithKDF(fastKDF),
		WithClock(func() time.Time { return now }))

	sess, err := svc.Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)

	cloud.mock.RefreshFunc = func(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
		return nil, errors.New("connection refused")
	}
	now = now.Add(time.Hour)

	_, err = sess.Token(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to refresh token")
	assert.Len(t, cloud.mock.LoginCalls(), 1, "transient refresh failure does not trigger a login")
}

func TestService_CloudMismatch(t *testing.T) {
	ctx := context.Background()
	ks := setupKeystore(t)
	cloud := newFakeCloud()

	_, err := NewService(cloud.mock, ks, "http://cloud-a", testLogger(), WithKDF(fastKDF)).Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)

	_, err = NewService(cloud.mock, ks, "http://cloud-b", testLogger(), WithKDF(fastKDF)).Unlock(ctx, testSecret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloud-a")
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	ks := setupKeystore(t)
	cloud := newFakeCloud()
	svc := NewService(cloud.mock, ks, "", testLogger(), WithKDF(fastKDF))

	_, err := svc.Register(ctx, "pos-1", testSecret)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))
	_, err = ks.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// повторный выход не ошибка
	assert.NoError(t, svc.Logout(ctx))
}

func TestKeystore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")

	ks, err := OpenKeystore(path)
	require.NoError(t, err)
	require.NoError(t, ks.Save(ctx, &Stored{DeviceID: "pos-1", PublicSalt: "salt", AccessToken: []byte{1, 2}}))
	require.NoError(t, ks.Close())

	ks, err = OpenKeystore(path)
	require.NoError(t, err)
	defer ks.Close()

	got, err := ks.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", got.DeviceID)
	assert.Equal(t, []byte{1, 2}, got.AccessToken)

	require.NoError(t, ks.Delete(ctx))
	assert.ErrorIs(t, ks.Delete(ctx), ErrNotFound)
}
