package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
)

func TestConflictStorage_Resolve(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	conflict := &models.DataConflict{
		TableName:    models.TableOrders,
		RecordID:     "o-1",
		ConflictType: models.ConflictTypeDelete,
		LocalData:    models.Record{"id": "o-1", "total": 5.0},
	}
	require.NoError(t, s.RecordConflict(ctx, conflict))

	pending, err := s.ListPendingConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].CloudData)
	assert.False(t, pending[0].IsResolved())

	err = s.ResolveConflict(ctx, conflict.ID, "pending", "mgr", nil)
	require.Error(t, err)

	cloud := models.Record{"id": "o-1", "total": 7.0}
	require.NoError(t, s.ResolveConflict(ctx, conflict.ID, models.ResolutionCloudWins, "mgr", cloud))

	got, err := s.GetConflict(ctx, conflict.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResolved())
	assert.Equal(t, models.ResolutionCloudWins, got.Resolution)
	assert.Equal(t, "mgr", got.ResolvedBy)
	assert.NotNil(t, got.ResolvedAt)
	assert.Equal(t, 7.0, got.CloudData["total"])

	err = s.ResolveConflict(ctx, conflict.ID, models.ResolutionLocalWins, "mgr", nil)
	assert.ErrorIs(t, err, store.ErrConflictResolved)

	err = s.ResolveConflict(ctx, "missing", models.ResolutionLocalWins, "mgr", nil)
	assert.ErrorIs(t, err, store.ErrConflictNotFound)

	_, err = s.GetConflict(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrConflictNotFound)

	pending, err = s.ListPendingConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := s.ListConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeviceStorage(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	device := &models.DeviceInfo{
		DeviceID:   "term-1",
		DeviceName: "Front counter",
		DeviceType: models.DeviceTypeTerminal,
		Addresses:  []string{"192.168.1.10"},
		IsOnline:   true,
	}
	require.NoError(t, s.RegisterDevice(ctx, device))
	require.NoError(t, s.RegisterDevice(ctx, &models.DeviceInfo{
		DeviceID:   "kitchen-1",
		DeviceName: "Kitchen display",
		DeviceType: models.DeviceTypeKitchen,
	}))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateDeviceSync(ctx, "term-1", "ok", at))
	err := s.UpdateDeviceSync(ctx, "unknown", "ok", at)
	assert.ErrorIs(t, err, store.ErrDeviceNotFound)

	// повторная регистрация не стирает результат синхронизации
	device.DeviceName = "Front counter 1"
	require.NoError(t, s.RegisterDevice(ctx, device))

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	front := devices[0]
	assert.Equal(t, "term-1", front.DeviceID)
	assert.Equal(t, "Front counter 1", front.DeviceName)
	assert.Equal(t, "ok", front.SyncStatus)
	require.NotNil(t, front.LastSyncAt)
	assert.True(t, front.LastSyncAt.Equal(at))
	assert.True(t, front.IsOnline)
	assert.Equal(t, []string{"192.168.1.10"}, front.Addresses)

	assert.Equal(t, models.DeviceTypeKitchen, devices[1].DeviceType)
	assert.False(t, devices[1].IsOnline)
}
