package authtoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Issuer:          "possync-test",
		Secret:          []byte("test-secret-key"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	cfg := testConfig()

	token, expiresIn, err := GenerateAccessToken(cfg, "acc-1", "pos-1", RoleDevice)
	require.NoError(t, err)
	assert.Equal(t, int64(900), expiresIn)

	claims, err := ValidateAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "pos-1", claims.DeviceID)
	assert.Equal(t, RoleDevice, claims.Role)
	assert.Equal(t, "possync-test", claims.Issuer)

	exp, err := ExpiresAt(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	cfg := testConfig()

	expiredCfg := cfg
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := GenerateAccessToken(expiredCfg, "acc-1", "pos-1", RoleDevice)
	require.NoError(t, err)

	otherSecret := cfg
	otherSecret.Secret = []byte("another-secret")
	forged, _, err := GenerateAccessToken(otherSecret, "acc-1", "pos-1", RoleAdmin)
	require.NoError(t, err)

	otherIssuer := cfg
	otherIssuer.Issuer = "someone-else"
	foreign, _, err := GenerateAccessToken(otherIssuer, "acc-1", "pos-1", RoleDevice)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "wrong secret", token: forged},
		{name: "wrong issuer", token: foreign},
		{name: "alg none", token: unsigned},
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessToken(cfg, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	cfg := testConfig()

	first, expiresAt, err := GenerateRefreshToken(cfg)
	require.NoError(t, err)
	second, _, err := GenerateRefreshToken(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 44)
	assert.WithinDuration(t, time.Now().Add(cfg.RefreshTokenTTL), expiresAt, 5*time.Second)
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{DeviceID: "pos-1", Role: RoleAdmin})
	claims, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "pos-1", claims.DeviceID)
}
