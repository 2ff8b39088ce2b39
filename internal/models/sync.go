package models

import "time"

// OperationType тип буферизованной мутации
type OperationType string

const (
	OperationInsert OperationType = "INSERT"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// Valid reports whether the operation type is one of the known values
func (o OperationType) Valid() bool {
	switch o {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// SyncStatus статус элемента очереди синхронизации
type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusFailed   SyncStatus = "failed"
	SyncStatusConflict SyncStatus = "conflict"
)

// IsTerminal reports whether no sync pass may move an item out of this status.
// Only explicit administrative actions (retry of failed items) leave a terminal status.
func (s SyncStatus) IsTerminal() bool {
	switch s {
	case SyncStatusSynced, SyncStatusFailed, SyncStatusConflict:
		return true
	}
	return false
}

// SyncQueueItem представляет одну буферизованную мутацию, ожидающую отправки в облако.
type SyncQueueItem struct {
	LocalTimestamp time.Time     `json:"local_timestamp"`           // LocalTimestamp время мутации на терминале
	CreatedAt      time.Time     `json:"created_at"`                // CreatedAt время постановки в очередь (определяет порядок)
	SyncedAt       *time.Time    `json:"synced_at,omitempty"`       // SyncedAt время подтверждения облаком
	LastRetryAt    *time.Time    `json:"last_retry_at,omitempty"`   // LastRetryAt время последней неудачной попытки
	RecordData     Record        `json:"record_data"`               // RecordData полный снимок записи на момент постановки
	ID             string        `json:"id"`                        // ID уникальный идентификатор элемента (UUIDv7)
	TableName      string        `json:"table_name"`                // TableName доменная таблица
	OperationType  OperationType `json:"operation_type"`            // OperationType INSERT, UPDATE или DELETE
	RecordID       string        `json:"record_id,omitempty"`       // RecordID идентификатор записи (пусто = NULL)
	SyncStatus     SyncStatus    `json:"sync_status"`               // SyncStatus текущий статус
	ErrorMessage   string        `json:"error_message,omitempty"`   // ErrorMessage последняя ошибка
	CreatedBy      string        `json:"created_by"`                // CreatedBy идентификатор сотрудника/устройства
	RetryCount     int           `json:"retry_count"`               // RetryCount число неудачных попыток
}

// RecordKey identifies the record a queue item mutates. Items sharing a key
// must be replayed in submission order.
func (i *SyncQueueItem) RecordKey() string {
	if i.RecordID == "" {
		return ""
	}
	return i.TableName + "/" + i.RecordID
}
