package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/store"
)

// PassResult итог одного прохода.
// InProgress = true означает, что другой проход уже выполнялся и этот ничего не сделал.
type PassResult struct {
	Processed  int  `json:"processed"`
	Successful int  `json:"successful"`
	Failed     int  `json:"failed"`
	Conflicts  int  `json:"conflicts"`
	InProgress bool `json:"in_progress,omitempty"`
}

// Статусы устройства после прохода
const (
	deviceSyncOK       = "ok"
	deviceSyncDegraded = "degraded"
)

// RunPass выполняет один проход по pending элементам в порядке постановки.
// Если проход уже идет, возвращает нулевой результат с InProgress.
func (e *Engine) RunPass(ctx context.Context) (PassResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("Sync pass already in progress")
		res := PassResult{InProgress: true}
		e.notifyPass(res, 0)
		return res, nil
	}
	defer e.running.Store(false)

	started := e.now()

	items, err := e.store.ListPending(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("failed to list pending items: %w", err)
	}

	e.logger.Debug("Starting sync pass", "pending", len(items))

	blocked, err := e.heldRecords(ctx)
	if err != nil {
		return PassResult{}, err
	}

	var res PassResult

	for _, item := range items {
		if ctx.Err() != nil {
			e.logger.Info("Sync pass interrupted", "error", ctx.Err())
			break
		}

		key := item.RecordKey()
		if _, ok := blocked[key]; ok && key != "" {
			e.notifyItem(item, OutcomeSkipped)
			continue
		}

		outcome := e.replay(ctx, item)
		switch outcome {
		case OutcomeSynced:
			res.Processed++
			res.Successful++
		case OutcomeConflict:
			res.Processed++
			res.Conflicts++
			if key != "" {
				blocked[key] = struct{}{}
			}
		case OutcomeRetry, OutcomeFailed:
			res.Processed++
			res.Failed++
			if key != "" {
				blocked[key] = struct{}{}
			}
		}
		e.notifyItem(item, outcome)
	}

	e.finishPass(context.WithoutCancel(ctx), res)

	elapsed := e.now().Sub(started)
	if res.Processed > 0 {
		e.logger.Info("Sync pass completed",
			"processed", res.Processed,
			"successful", res.Successful,
			"failed", res.Failed,
			"conflicts", res.Conflicts,
			"duration", elapsed)
	}
	e.notifyPass(res, elapsed)

	return res, nil
}

// heldRecords возвращает записи с неразрешенным конфликтом. Их следующие
// элементы остаются pending до решения оператора. В ходе прохода сюда же
// добавляются записи с временной ошибкой или новым конфликтом.
func (e *Engine) heldRecords(ctx context.Context) (map[string]struct{}, error) {
	conflicts, err := e.store.ListPendingConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	held := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		key := (&models.SyncQueueItem{TableName: c.TableName, RecordID: c.RecordID}).RecordKey()
		if key != "" {
			held[key] = struct{}{}
		}
	}
	return held, nil
}

// finishPass пишет время и итог прохода, отмечает устройство терминала
func (e *Engine) finishPass(ctx context.Context, res PassResult) {
	now := e.now().UTC()

	if err := e.store.SetMeta(ctx, store.MetaLastSyncTime, now.Format(time.RFC3339Nano)); err != nil {
		e.logger.Warn("Failed to save last sync time", "error", err)
	}

	if data, err := json.Marshal(res); err == nil {
		if err := e.store.SetMeta(ctx, store.MetaLastPassStat, string(data)); err != nil {
			e.logger.Warn("Failed to save pass result", "error", err)
		}
	}

	if e.cfg.DeviceID == "" {
		return
	}
	status := deviceSyncOK
	if res.Failed > 0 || res.Conflicts > 0 {
		status = deviceSyncDegraded
	}
	err := e.store.UpdateDeviceSync(ctx, e.cfg.DeviceID, status, now)
	switch {
	case errors.Is(err, store.ErrDeviceNotFound):
		e.logger.Debug("Terminal is not in the device registry", "device_id", e.cfg.DeviceID)
	case err != nil:
		e.logger.Warn("Failed to update device sync status", "device_id", e.cfg.DeviceID, "error", err)
	}
}

// replay отправляет один элемент в облако и записывает исход
func (e *Engine) replay(ctx context.Context, item *models.SyncQueueItem) Outcome {
	log := e.logger.With("item_id", item.ID, "table", item.TableName, "record_id", item.RecordID)

	if err := e.store.UpdateSyncStatus(ctx, item.ID, models.SyncStatusSyncing, ""); err != nil {
		// элемент мог быть удален или переведен администратором после ListPending
		log.Warn("Failed to mark item as syncing", "error", err)
		return OutcomeSkipped
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	err := e.backend.Apply(rctx, remote.ApplyRequest{
		Table:     item.TableName,
		Operation: item.OperationType,
		RecordID:  item.RecordID,
		Payload:   item.RecordData,
	})
	cancel()

	// учет выполняется даже если проход отменили во время вызова
	bctx := context.WithoutCancel(ctx)

	if err == nil {
		return e.markSynced(bctx, item, log)
	}

	if ctx.Err() != nil {
		// отмена прохода не считается попыткой
		if uerr := e.store.UpdateSyncStatus(bctx, item.ID, models.SyncStatusPending, ""); uerr != nil {
			log.Error("Failed to return interrupted item to pending", "error", uerr)
		}
		return OutcomeSkipped
	}

	if ce, ok := remote.AsConflict(err); ok {
		if item.OperationType == models.OperationDelete && ce.Kind == remote.ConflictNotFound {
			// запись уже удалена в облаке
			return e.markSynced(bctx, item, log)
		}
		return e.recordConflict(bctx, item, ce, log)
	}

	return e.handleTransient(bctx, item, err, log)
}

func (e *Engine) markSynced(ctx context.Context, item *models.SyncQueueItem, log *slog.Logger) Outcome {
	if err := e.store.UpdateSyncStatus(ctx, item.ID, models.SyncStatusSynced, ""); err != nil {
		log.Error("Failed to mark item as synced", "error", err)
		return OutcomeSkipped
	}
	item.SyncStatus = models.SyncStatusSynced
	log.Debug("Item synced", "operation", item.OperationType)
	return OutcomeSynced
}

func (e *Engine) recordConflict(ctx context.Context, item *models.SyncQueueItem, ce *remote.ConflictError, log *slog.Logger) Outcome {
	recordID := item.RecordID
	if recordID == "" {
		recordID = item.RecordData.ID()
	}

	cloud := ce.Remote
	if cloud == nil && recordID != "" {
		cloud = e.fetchBestEffort(ctx, item.TableName, recordID)
	}

	conflict := &models.DataConflict{
		TableName:    item.TableName,
		RecordID:     recordID,
		LocalData:    item.RecordData,
		CloudData:    cloud,
		ConflictType: conflictTypeFor(item.OperationType, ce.Kind),
		Resolution:   models.ResolutionPending,
	}

	if err := e.store.MarkConflict(ctx, item.ID, conflict); err != nil {
		log.Error("Failed to record conflict", "error", err)
		return OutcomeSkipped
	}
	item.SyncStatus = models.SyncStatusConflict

	log.Warn("Sync conflict detected",
		"conflict_id", conflict.ID,
		"conflict_type", conflict.ConflictType,
		"error", ce)
	e.notifyConflict(conflict)

	return OutcomeConflict
}

func (e *Engine) handleTransient(ctx context.Context, item *models.SyncQueueItem, cause error, log *slog.Logger) Outcome {
	count, err := e.store.IncrementRetry(ctx, item.ID, cause.Error())
	if err != nil {
		log.Error("Failed to increment retry count", "error", err)
		if uerr := e.store.UpdateSyncStatus(ctx, item.ID, models.SyncStatusPending, cause.Error()); uerr != nil {
			log.Error("Failed to return item to pending", "error", uerr)
		}
		return OutcomeRetry
	}
	item.RetryCount = count

	if count >= e.cfg.MaxRetries {
		msg := fmt.Sprintf("%v: %v", ErrRetriesExhausted, cause)
		if err := e.store.UpdateSyncStatus(ctx, item.ID, models.SyncStatusFailed, msg); err != nil {
			log.Error("Failed to mark item as failed", "error", err)
		}
		item.SyncStatus = models.SyncStatusFailed
		log.Error("Sync item failed permanently", "retry_count", count, "error", cause)
		return OutcomeFailed
	}

	if err := e.store.UpdateSyncStatus(ctx, item.ID, models.SyncStatusPending, cause.Error()); err != nil {
		log.Error("Failed to return item to pending", "error", err)
	}
	item.SyncStatus = models.SyncStatusPending

	log.Warn("Sync attempt failed, will retry",
		"retry_count", count,
		"max_retries", e.cfg.MaxRetries,
		"error", cause)
	e.scheduleRetry(count)

	return OutcomeRetry
}

func (e *Engine) fetchBestEffort(ctx context.Context, table, id string) models.Record {
	fctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	rec, err := e.backend.Fetch(fctx, table, id)
	if err != nil {
		e.logger.Debug("Failed to fetch cloud record", "table", table, "record_id", id, "error", err)
		return nil
	}
	return rec
}

// conflictTypeFor переводит вид конфликта облака в тип записи журнала конфликтов
func conflictTypeFor(op models.OperationType, kind remote.ConflictKind) models.ConflictType {
	switch {
	case op == models.OperationInsert && kind == remote.ConflictDuplicate:
		return models.ConflictTypeUpdate
	case op == models.OperationUpdate && kind == remote.ConflictNotFound:
		return models.ConflictTypeDelete
	default:
		return models.ConflictTypeMerge
	}
}
