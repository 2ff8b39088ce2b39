package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/pkg/api"
)

func TestClient_AgainstHandler(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t, true)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, env.admin)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.Equal(t, 0, status.PendingCount)

	stats, err := client.Statistics(ctx)
	require.NoError(t, err)
	assert.False(t, stats.SyncInProgress)

	pass, err := client.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pass.Processed)

	c := seedConflict(t, env.store)
	conflicts, err := client.Conflicts(ctx, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, c.ID, conflicts[0].ID)

	require.NoError(t, client.Resolve(ctx, c.ID, api.ResolveRequest{Resolution: string(models.ResolutionCloudWins)}))

	conflicts, err = client.Conflicts(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	all, err := client.Conflicts(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "operator-1", all[0].ResolvedBy)

	// повторное разрешение отклоняется
	err = client.Resolve(ctx, c.ID, api.ResolveRequest{Resolution: string(models.ResolutionLocalWins)})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	n, err := client.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = client.ClearFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = client.ClearLegacy(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	device, err := client.RegisterDevice(ctx, api.DeviceRequest{DeviceID: "kds-1", DeviceName: "Kitchen", DeviceType: "kitchen"})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceTypeKitchen, device.DeviceType)

	devices, err := client.Devices(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, devices)
}

func TestClient_Unauthorized(t *testing.T) {
	env := setupTestEnv(t, true)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "device token", token: env.device, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(srv.URL, tt.token).Status(context.Background())
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.want, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}
