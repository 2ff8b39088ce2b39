package store

import (
	"context"
	"time"

	"github.com/iudanet/possync/internal/models"
)

// Row одна строка результата Query: имя колонки -> значение
type Row map[string]any

// ExecResult результат Execute
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Mutation описывает изменение зеркальной доменной таблицы на терминале.
// Если Enqueue = true, в той же транзакции добавляется элемент sync_queue
// со статусом pending.
type Mutation struct {
	Now       time.Time
	Payload   models.Record
	Operation models.OperationType
	Table     string
	RecordID  string
	Actor     string
	Enqueue   bool
}

// MutationResult результат ApplyLocal
type MutationResult struct {
	Snapshot  models.Record         // Snapshot запись после изменения (для DELETE - последнее известное состояние)
	QueueItem *models.SyncQueueItem // QueueItem добавленный элемент очереди, nil если Enqueue = false
}

// StatusCounts количество элементов очереди по статусам
type StatusCounts map[models.SyncStatus]int

// RawStorage низкоуровневый интерфейс выполнения SQL
type RawStorage interface {
	// Execute выполняет statement и возвращает число затронутых строк и последний id
	Execute(ctx context.Context, statement string, args ...any) (ExecResult, error)

	// Query выполняет statement и возвращает строки в порядке результата
	Query(ctx context.Context, statement string, args ...any) ([]Row, error)
}

// QueueStorage defines sync queue persistence
type QueueStorage interface {
	// EnqueueSync appends an item to the queue; ID and CreatedAt are assigned when empty
	EnqueueSync(ctx context.Context, item *models.SyncQueueItem) error

	// ListPending returns pending items ordered by created_at ascending (FIFO)
	ListPending(ctx context.Context) ([]*models.SyncQueueItem, error)

	// GetQueueItem retrieves a queue item by ID
	// Returns ErrItemNotFound if the item doesn't exist
	GetQueueItem(ctx context.Context, id string) (*models.SyncQueueItem, error)

	// UpdateSyncStatus sets the status and error message of a non-terminal item.
	// Returns ErrTerminalStatus if the item already reached synced, failed or conflict.
	UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus, errMsg string) error

	// IncrementRetry increments retry_count, stamps last_retry_at and returns the new count
	IncrementRetry(ctx context.Context, id string, errMsg string) (int, error)

	// MarkConflict records the conflict and moves the item to conflict status atomically
	MarkConflict(ctx context.Context, itemID string, conflict *models.DataConflict) error

	// CountByStatus returns the number of queue items per status
	CountByStatus(ctx context.Context) (StatusCounts, error)

	// ClearFailed deletes failed items and returns how many were removed
	ClearFailed(ctx context.Context) (int, error)

	// ResetFailed moves failed items back to pending with a zero retry count
	ResetFailed(ctx context.Context) (int, error)

	// ClearLegacy deletes queue items of a table that is no longer in the domain schema
	ClearLegacy(ctx context.Context, table string) (int, error)

	// DiscardPending deletes pending items of one record and returns how many were removed
	DiscardPending(ctx context.Context, table, recordID string) (int, error)
}

// RecordStorage defines access to the mirrored domain tables
type RecordStorage interface {
	// ApplyLocal applies a mutation to a mirrored table, optionally enqueueing it
	ApplyLocal(ctx context.Context, m Mutation) (*MutationResult, error)

	// GetRecord retrieves a record by ID
	// Returns ErrRecordNotFound if the record doesn't exist
	GetRecord(ctx context.Context, table, id string) (models.Record, error)

	// ListRecords returns all records of a table ordered by creation time
	ListRecords(ctx context.Context, table string) ([]models.Record, error)

	// ReplaceRecord stores record in place of oldID (they may differ) without enqueueing
	ReplaceRecord(ctx context.Context, table, oldID string, record models.Record) error

	// DeleteRecord removes a record without enqueueing
	DeleteRecord(ctx context.Context, table, id string) error

	// HasTable reports whether table is a mirrored domain table
	HasTable(table string) bool

	// Tables returns the mirrored domain tables
	Tables() []string
}

// ConflictStorage defines the conflict ledger
type ConflictStorage interface {
	// RecordConflict stores a new conflict; ID and CreatedAt are assigned when empty
	RecordConflict(ctx context.Context, conflict *models.DataConflict) error

	// GetConflict retrieves a conflict by ID
	// Returns ErrConflictNotFound if the conflict doesn't exist
	GetConflict(ctx context.Context, id string) (*models.DataConflict, error)

	// ResolveConflict stores the resolution of a pending conflict.
	// Returns ErrConflictResolved if it was resolved before.
	ResolveConflict(ctx context.Context, id string, resolution models.Resolution, resolvedBy string, cloudData models.Record) error

	// ListPendingConflicts returns unresolved conflicts, oldest first
	ListPendingConflicts(ctx context.Context) ([]*models.DataConflict, error)

	// ListConflicts returns all conflicts, oldest first
	ListConflicts(ctx context.Context) ([]*models.DataConflict, error)
}

// DeviceStorage defines the device registry
type DeviceStorage interface {
	// RegisterDevice inserts or updates a device entry
	RegisterDevice(ctx context.Context, device *models.DeviceInfo) error

	// ListDevices returns all registered devices
	ListDevices(ctx context.Context) ([]*models.DeviceInfo, error)

	// UpdateDeviceSync stamps last_sync_at and sync_status of a device
	UpdateDeviceSync(ctx context.Context, deviceID, status string, at time.Time) error
}

// MetaStorage key/value bookkeeping kept in the sync_status table
type MetaStorage interface {
	// SetMeta stores a value
	SetMeta(ctx context.Context, key, value string) error

	// GetMeta returns a value and false if the key is absent
	GetMeta(ctx context.Context, key string) (string, bool, error)
}

// Storage is the complete local store used by the router and sync engine
type Storage interface {
	RawStorage
	QueueStorage
	RecordStorage
	ConflictStorage
	DeviceStorage
	MetaStorage
}

// Meta keys
const (
	MetaLastSyncTime = "last_sync_time"
	MetaLastPassStat = "last_pass_result"
)
