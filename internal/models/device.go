package models

import "time"

// DeviceType роль устройства в торговой точке
type DeviceType string

const (
	DeviceTypeTerminal DeviceType = "terminal"
	DeviceTypeKitchen  DeviceType = "kitchen"
	DeviceTypeManager  DeviceType = "manager"
	DeviceTypeKiosk    DeviceType = "kiosk"
)

// DeviceInfo запись реестра устройств, участвующих в синхронизации
type DeviceInfo struct {
	LastSeen   time.Time  `json:"last_seen"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	DeviceID   string     `json:"device_id"`
	DeviceName string     `json:"device_name"`
	DeviceType DeviceType `json:"device_type"`
	UserID     string     `json:"user_id,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	SyncStatus string     `json:"sync_status,omitempty"`
	Addresses  []string   `json:"addresses,omitempty"`
	IsOnline   bool       `json:"is_online"`
}
