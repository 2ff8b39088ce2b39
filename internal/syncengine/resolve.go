package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/store"
)

// ResolveConflict применяет решение оператора к конфликту.
//
//   - local_wins: локальный снимок отправляется в облако с перезаписью,
//     отложенные элементы записи реплицируются следующим проходом
//   - cloud_wins: локальная запись заменяется облачной (удаляется, если в облаке ее нет),
//     отложенные элементы записи отбрасываются
//   - manual_merge: если передан merged, отложенные элементы отбрасываются,
//     а merged сохраняется локально и ставится в очередь как UPDATE
//
// Повторное разрешение возвращает store.ErrConflictResolved.
func (e *Engine) ResolveConflict(ctx context.Context, id string, resolution models.Resolution, resolvedBy string, merged models.Record) error {
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	c, err := e.store.GetConflict(ctx, id)
	if err != nil {
		return err
	}
	if c.IsResolved() {
		return store.ErrConflictResolved
	}

	cloud := c.CloudData

	switch resolution {
	case models.ResolutionLocalWins:
		if err := e.pushLocal(ctx, c); err != nil {
			return err
		}

	case models.ResolutionCloudWins:
		if cloud == nil {
			cloud, err = e.fetchCloud(ctx, c.TableName, c.RecordID)
			if err != nil {
				return err
			}
		}
		if cloud == nil {
			err = e.store.DeleteRecord(ctx, c.TableName, c.RecordID)
		} else {
			err = e.store.ReplaceRecord(ctx, c.TableName, c.RecordID, cloud)
		}
		if err != nil {
			return fmt.Errorf("failed to apply cloud version locally: %w", err)
		}
		if err := e.discardHeld(ctx, c); err != nil {
			return err
		}

	case models.ResolutionManualMerge:
		if merged != nil {
			if err := e.discardHeld(ctx, c); err != nil {
				return err
			}
			if err := e.storeMerged(ctx, c, merged, resolvedBy); err != nil {
				return err
			}
		}
	}

	if err := e.store.ResolveConflict(ctx, id, resolution, resolvedBy, cloud); err != nil {
		return err
	}

	e.logger.Info("Conflict resolved",
		"conflict_id", id,
		"table", c.TableName,
		"record_id", c.RecordID,
		"resolution", resolution,
		"resolved_by", resolvedBy)

	return nil
}

// pushLocal отправляет локальный снимок с перезаписью облачного состояния
func (e *Engine) pushLocal(ctx context.Context, c *models.DataConflict) error {
	op := models.OperationUpdate
	if c.QueueItemID != "" {
		item, err := e.store.GetQueueItem(ctx, c.QueueItemID)
		switch {
		case err == nil:
			op = item.OperationType
		case !errors.Is(err, store.ErrItemNotFound):
			return err
		}
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	err := e.backend.Apply(rctx, remote.ApplyRequest{
		Table:     c.TableName,
		Operation: op,
		RecordID:  c.RecordID,
		Payload:   c.LocalData,
		Overwrite: true,
	})
	if err != nil {
		return fmt.Errorf("%w: push local version: %w", ErrCloudRequest, err)
	}
	return nil
}

// fetchCloud возвращает nil без ошибки, если записи в облаке нет
func (e *Engine) fetchCloud(ctx context.Context, table, id string) (models.Record, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	rec, err := e.backend.Fetch(rctx, table, id)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch cloud version: %w", ErrCloudRequest, err)
	}
	return rec, nil
}

// discardHeld удаляет элементы, отложенные из-за конфликта и вытесненные решением
func (e *Engine) discardHeld(ctx context.Context, c *models.DataConflict) error {
	n, err := e.store.DiscardPending(ctx, c.TableName, c.RecordID)
	if err != nil {
		return fmt.Errorf("failed to discard held items: %w", err)
	}
	if n > 0 {
		e.logger.Info("Discarded queue items superseded by resolution",
			"conflict_id", c.ID,
			"table", c.TableName,
			"record_id", c.RecordID,
			"count", n)
	}
	return nil
}

func (e *Engine) storeMerged(ctx context.Context, c *models.DataConflict, merged models.Record, actor string) error {
	targetID := merged.ID()
	if targetID == "" {
		targetID = c.RecordID
	}

	if targetID != c.RecordID {
		if err := e.store.DeleteRecord(ctx, c.TableName, c.RecordID); err != nil {
			return fmt.Errorf("failed to remove superseded record: %w", err)
		}
	}

	_, err := e.store.ApplyLocal(ctx, store.Mutation{
		Now:       e.now(),
		Payload:   merged,
		Operation: models.OperationUpdate,
		Table:     c.TableName,
		RecordID:  targetID,
		Actor:     actor,
		Enqueue:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to store merged record: %w", err)
	}
	return nil
}
