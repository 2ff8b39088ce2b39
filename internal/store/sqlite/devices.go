package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
)

// RegisterDevice inserts or updates a device registry entry
func (s *Storage) RegisterDevice(ctx context.Context, device *models.DeviceInfo) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if device.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if device.LastSeen.IsZero() {
		device.LastSeen = time.Now().UTC()
	}

	addresses, err := json.Marshal(device.Addresses)
	if err != nil {
		return fmt.Errorf("failed to marshal addresses: %w", err)
	}

	query := `
		INSERT INTO device_registry (device_id, device_name, device_type, user_id, ip_address,
			addresses, last_seen, is_online, sync_status, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			device_name = excluded.device_name,
			device_type = excluded.device_type,
			user_id = excluded.user_id,
			ip_address = excluded.ip_address,
			addresses = excluded.addresses,
			last_seen = excluded.last_seen,
			is_online = excluded.is_online,
			sync_status = COALESCE(excluded.sync_status, device_registry.sync_status),
			last_sync_at = COALESCE(excluded.last_sync_at, device_registry.last_sync_at)
	`

	_, err = s.db.ExecContext(ctx, query,
		device.DeviceID,
		device.DeviceName,
		device.DeviceType,
		nullString(device.UserID),
		nullString(device.IPAddress),
		string(addresses),
		toNanos(device.LastSeen),
		device.IsOnline,
		nullString(device.SyncStatus),
		nullNanos(device.LastSyncAt),
	)
	if err != nil {
		return store.Wrap("register_device", fmt.Errorf("failed to register device: %w", err))
	}

	return nil
}

// ListDevices returns all registered devices ordered by name
func (s *Storage) ListDevices(ctx context.Context) ([]*models.DeviceInfo, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	query := `
		SELECT device_id, device_name, device_type, user_id, ip_address, addresses,
			last_seen, is_online, sync_status, last_sync_at
		FROM device_registry
		ORDER BY device_name ASC, device_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Wrap("list_devices", fmt.Errorf("failed to query devices: %w", err))
	}
	defer rows.Close()

	devices := make([]*models.DeviceInfo, 0)
	for rows.Next() {
		d := &models.DeviceInfo{}
		var (
			userID     sql.NullString
			ipAddress  sql.NullString
			addresses  sql.NullString
			syncStatus sql.NullString
			lastSeen   int64
			lastSyncAt sql.NullInt64
		)

		if err := rows.Scan(
			&d.DeviceID,
			&d.DeviceName,
			&d.DeviceType,
			&userID,
			&ipAddress,
			&addresses,
			&lastSeen,
			&d.IsOnline,
			&syncStatus,
			&lastSyncAt,
		); err != nil {
			return nil, store.Wrap("list_devices", fmt.Errorf("failed to scan device: %w", err))
		}

		d.UserID = userID.String
		d.IPAddress = ipAddress.String
		d.SyncStatus = syncStatus.String
		d.LastSeen = fromNanos(lastSeen)
		d.LastSyncAt = timePtr(lastSyncAt)
		if addresses.Valid && addresses.String != "" {
			if err := json.Unmarshal([]byte(addresses.String), &d.Addresses); err != nil {
				return nil, store.Wrap("list_devices", fmt.Errorf("failed to unmarshal addresses: %w", err))
			}
		}

		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list_devices", err)
	}

	return devices, nil
}

// UpdateDeviceSync stamps the outcome of the latest sync pass for a device
func (s *Storage) UpdateDeviceSync(ctx context.Context, deviceID, status string, at time.Time) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE device_registry
		SET sync_status = ?, last_sync_at = ?, last_seen = ?
		WHERE device_id = ?
	`, status, toNanos(at), toNanos(at), deviceID)
	if err != nil {
		return store.Wrap("update_device_sync", fmt.Errorf("failed to update device: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("update_device_sync", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrDeviceNotFound, deviceID)
	}

	return nil
}
