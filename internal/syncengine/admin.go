package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/store"
	"github.com/iudanet/possync/internal/validation"
)

// Status сводка для оператора
type Status struct {
	LastSyncTime  *time.Time         `json:"last_sync_time,omitempty"`
	NetworkMode   models.NetworkMode `json:"network_mode"`
	PendingCount  int                `json:"pending_count"`
	ConflictCount int                `json:"conflict_count"`
	DeviceCount   int                `json:"device_count"`
	IsOnline      bool               `json:"is_online"`
}

// Statistics состояние очереди.
// TotalPending включает элементы, отправляемые прямо сейчас (syncing).
type Statistics struct {
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
	TotalPending   int        `json:"total_pending"`
	TotalFailed    int        `json:"total_failed"`
	TotalConflicts int        `json:"total_conflicts"`
	SyncInProgress bool       `json:"sync_in_progress"`
}

// ForceSync запускает проход немедленно. Без облака возвращает remote.ErrOffline.
func (e *Engine) ForceSync(ctx context.Context) (PassResult, error) {
	if !e.isOnline() {
		return PassResult{}, remote.ErrOffline
	}
	return e.RunPass(ctx)
}

// ClearFailedItems удаляет элементы в статусе failed
func (e *Engine) ClearFailedItems(ctx context.Context) (int, error) {
	n, err := e.store.ClearFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear failed items: %w", err)
	}
	e.logger.Info("Cleared failed sync items", "count", n)
	return n, nil
}

// RetryFailedItems возвращает failed элементы в pending со сброшенным счетчиком
// и, если облако доступно, сразу запускает проход
func (e *Engine) RetryFailedItems(ctx context.Context) (int, error) {
	n, err := e.store.ResetFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed items: %w", err)
	}
	e.logger.Info("Failed sync items returned to queue", "count", n)

	if n > 0 && e.isOnline() {
		if _, err := e.RunPass(ctx); err != nil {
			e.logger.Warn("Sync pass after retry failed", "error", err)
		}
	}
	return n, nil
}

// ClearLegacyItems удаляет элементы очереди таблицы, которой больше нет в доменной схеме
func (e *Engine) ClearLegacyItems(ctx context.Context, table string) (int, error) {
	if err := validation.ValidateTableName(table); err != nil {
		return 0, err
	}
	n, err := e.store.ClearLegacy(ctx, table)
	if err != nil {
		return 0, err
	}
	e.logger.Info("Cleared legacy sync items", "table", table, "count", n)
	return n, nil
}

// Status возвращает сводку для оператора
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	conflicts, err := e.store.ListPendingConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	devices, err := e.store.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	last, err := e.lastSyncTime(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		IsOnline:      e.isOnline(),
		NetworkMode:   models.NetworkModeOffline,
		PendingCount:  counts[models.SyncStatusPending] + counts[models.SyncStatusSyncing],
		ConflictCount: len(conflicts),
		DeviceCount:   len(devices),
		LastSyncTime:  last,
	}
	if e.conn != nil {
		st.NetworkMode = e.conn.State().Mode
	}
	return st, nil
}

// Statistics возвращает состояние очереди
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	conflicts, err := e.store.ListPendingConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	last, err := e.lastSyncTime(ctx)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		TotalPending:   counts[models.SyncStatusPending] + counts[models.SyncStatusSyncing],
		TotalFailed:    counts[models.SyncStatusFailed],
		TotalConflicts: len(conflicts),
		SyncInProgress: e.running.Load(),
		LastSyncTime:   last,
	}, nil
}

// InProgress reports whether a pass is running right now
func (e *Engine) InProgress() bool {
	return e.running.Load()
}

func (e *Engine) lastSyncTime(ctx context.Context) (*time.Time, error) {
	value, ok, err := e.store.GetMeta(ctx, store.MetaLastSyncTime)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		e.logger.Warn("Malformed last sync time", "value", value, "error", err)
		return nil, nil
	}
	return &t, nil
}
