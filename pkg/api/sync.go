package api

import "time"

// StatusResponse ответ GET /api/v1/sync/status
type StatusResponse struct {
	LastSyncTime  *time.Time `json:"last_sync_time"`
	NetworkMode   string     `json:"network_mode"`
	PendingCount  int        `json:"pending_count"`
	ConflictCount int        `json:"conflict_count"`
	DeviceCount   int        `json:"device_count"`
	IsOnline      bool       `json:"is_online"`
}

// StatisticsResponse ответ GET /api/v1/sync/statistics
type StatisticsResponse struct {
	LastSyncTime   *time.Time `json:"last_sync_time"`
	TotalPending   int        `json:"total_pending"`
	TotalFailed    int        `json:"total_failed"`
	TotalConflicts int        `json:"total_conflicts"`
	SyncInProgress bool       `json:"sync_in_progress"`
}

// PassResponse итог прохода синхронизации
type PassResponse struct {
	Processed  int  `json:"processed"`
	Successful int  `json:"successful"`
	Failed     int  `json:"failed"`
	Conflicts  int  `json:"conflicts"`
	InProgress bool `json:"in_progress,omitempty"` // проход уже выполнялся, этот вызов ничего не сделал
}

// CountResponse количество затронутых элементов
type CountResponse struct {
	Count int `json:"count"`
}

// ResolveRequest тело POST /api/v1/sync/conflicts/{id}/resolve
type ResolveRequest struct {
	Merged     map[string]any `json:"merged,omitempty"` // итоговая запись для manual_merge
	Resolution string         `json:"resolution"`
	ResolvedBy string         `json:"resolved_by"`
}

// HealthResponse ответ GET /api/v1/health
type HealthResponse struct {
	Status      string `json:"status"`
	NetworkMode string `json:"network_mode"`
	Ready       bool   `json:"ready"`
}

// SyncEvent событие websocket потока /api/v1/sync/events
type SyncEvent struct {
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
	Type    string    `json:"type"` // network_changed, pass_completed, conflict_detected
}

// DeviceRequest тело POST /api/v1/devices
type DeviceRequest struct {
	DeviceID   string   `json:"device_id"`
	DeviceName string   `json:"device_name"`
	DeviceType string   `json:"device_type"`
	UserID     string   `json:"user_id,omitempty"`
	IPAddress  string   `json:"ip_address,omitempty"`
	Addresses  []string `json:"addresses,omitempty"`
}
