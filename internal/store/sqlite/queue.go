package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
)

const queueColumns = `id, table_name, operation_type, record_id, record_data, local_timestamp,
	sync_status, retry_count, error_message, created_by, created_at, synced_at, last_retry_at`

// EnqueueSync appends an item to the sync queue
func (s *Storage) EnqueueSync(ctx context.Context, item *models.SyncQueueItem) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return store.Wrap("enqueue", insertQueueItem(ctx, s.db, item))
}

func insertQueueItem(ctx context.Context, q querier, item *models.SyncQueueItem) error {
	if !item.OperationType.Valid() {
		return fmt.Errorf("invalid operation type %q", item.OperationType)
	}
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate queue item id: %w", err)
		}
		item.ID = id.String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.LocalTimestamp.IsZero() {
		item.LocalTimestamp = item.CreatedAt
	}
	if item.SyncStatus == "" {
		item.SyncStatus = models.SyncStatusPending
	}

	query := `
		INSERT INTO sync_queue (` + queueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		item.ID,
		item.TableName,
		item.OperationType,
		nullString(item.RecordID),
		item.RecordData,
		toNanos(item.LocalTimestamp),
		item.SyncStatus,
		item.RetryCount,
		nullString(item.ErrorMessage),
		item.CreatedBy,
		toNanos(item.CreatedAt),
		nullNanos(item.SyncedAt),
		nullNanos(item.LastRetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync queue item: %w", err)
	}

	return nil
}

// ListPending returns pending items in submission order
func (s *Storage) ListPending(ctx context.Context) ([]*models.SyncQueueItem, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	query := `SELECT ` + queueColumns + ` FROM sync_queue
		WHERE sync_status = ?
		ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, models.SyncStatusPending)
	if err != nil {
		return nil, store.Wrap("list_pending", fmt.Errorf("failed to query pending items: %w", err))
	}
	defer rows.Close()

	items := make([]*models.SyncQueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, store.Wrap("list_pending", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list_pending", err)
	}

	return items, nil
}

// GetQueueItem retrieves a queue item by ID
func (s *Storage) GetQueueItem(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, store.Wrap("get_queue_item", err)
	}
	return item, nil
}

// UpdateSyncStatus sets the status of a non-terminal item
func (s *Storage) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus, errMsg string) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	now := time.Now().UTC()
	var syncedAt sql.NullInt64
	if status == models.SyncStatusSynced {
		syncedAt = nullNanos(&now)
	}

	query := `
		UPDATE sync_queue
		SET sync_status = ?, error_message = ?, synced_at = COALESCE(?, synced_at)
		WHERE id = ? AND sync_status NOT IN ('synced', 'failed', 'conflict')
	`

	res, err := s.db.ExecContext(ctx, query, status, nullString(errMsg), syncedAt, id)
	if err != nil {
		return store.Wrap("update_sync_status", fmt.Errorf("failed to update sync status: %w", err))
	}

	return s.checkQueueUpdate(ctx, s.db, res, id)
}

// IncrementRetry increments retry_count of a non-terminal item and returns the new value
func (s *Storage) IncrementRetry(ctx context.Context, id string, errMsg string) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}

	query := `
		UPDATE sync_queue
		SET retry_count = retry_count + 1, error_message = ?, last_retry_at = ?
		WHERE id = ? AND sync_status NOT IN ('synced', 'failed', 'conflict')
		RETURNING retry_count
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, nullString(errMsg), toNanos(time.Now()), id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.missingOrTerminal(ctx, s.db, id)
	}
	if err != nil {
		return 0, store.Wrap("increment_retry", fmt.Errorf("failed to increment retry: %w", err))
	}

	return count, nil
}

// MarkConflict records the conflict and moves the item to conflict in one transaction
func (s *Storage) MarkConflict(ctx context.Context, itemID string, conflict *models.DataConflict) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_queue SET sync_status = ?, error_message = ?
			WHERE id = ? AND sync_status NOT IN ('synced', 'failed', 'conflict')
		`, models.SyncStatusConflict, string(conflict.ConflictType), itemID)
		if err != nil {
			return fmt.Errorf("failed to mark conflict: %w", err)
		}
		if err := s.checkQueueUpdate(ctx, tx, res, itemID); err != nil {
			return err
		}

		conflict.QueueItemID = itemID
		return insertConflict(ctx, tx, conflict)
	})

	return store.Wrap("mark_conflict", err)
}

// CountByStatus returns the number of queue items per status
func (s *Storage) CountByStatus(ctx context.Context) (store.StatusCounts, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM sync_queue GROUP BY sync_status`)
	if err != nil {
		return nil, store.Wrap("count_by_status", fmt.Errorf("failed to count items: %w", err))
	}
	defer rows.Close()

	counts := store.StatusCounts{}
	for rows.Next() {
		var (
			status models.SyncStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, store.Wrap("count_by_status", err)
		}
		counts[status] = n
	}

	return counts, store.Wrap("count_by_status", rows.Err())
}

// ClearFailed deletes failed items
func (s *Storage) ClearFailed(ctx context.Context) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE sync_status = ?`, models.SyncStatusFailed)
	if err != nil {
		return 0, store.Wrap("clear_failed", fmt.Errorf("failed to delete failed items: %w", err))
	}
	n, err := res.RowsAffected()
	return int(n), store.Wrap("clear_failed", err)
}

// ResetFailed moves failed items back to pending
func (s *Storage) ResetFailed(ctx context.Context) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET sync_status = ?, retry_count = 0, error_message = NULL
		WHERE sync_status = ?
	`, models.SyncStatusPending, models.SyncStatusFailed)
	if err != nil {
		return 0, store.Wrap("reset_failed", fmt.Errorf("failed to reset failed items: %w", err))
	}
	n, err := res.RowsAffected()
	return int(n), store.Wrap("reset_failed", err)
}

// ClearLegacy deletes items of a table that is no longer mirrored
func (s *Storage) ClearLegacy(ctx context.Context, table string) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	if s.HasTable(table) {
		return 0, fmt.Errorf("%w: %s", store.ErrTableInUse, table)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE table_name = ?`, table)
	if err != nil {
		return 0, store.Wrap("clear_legacy", fmt.Errorf("failed to delete legacy items: %w", err))
	}
	n, err := res.RowsAffected()
	return int(n), store.Wrap("clear_legacy", err)
}

// DiscardPending удаляет pending элементы записи, вытесненные решением по конфликту
func (s *Storage) DiscardPending(ctx context.Context, table, recordID string) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE table_name = ? AND record_id = ? AND sync_status = ?`,
		table, recordID, models.SyncStatusPending)
	if err != nil {
		return 0, store.Wrap("discard_pending", fmt.Errorf("failed to delete pending items: %w", err))
	}
	n, err := res.RowsAffected()
	return int(n), store.Wrap("discard_pending", err)
}

// checkQueueUpdate превращает 0 затронутых строк в ErrItemNotFound или ErrTerminalStatus
func (s *Storage) checkQueueUpdate(ctx context.Context, q querier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("update_sync_status", err)
	}
	if n > 0 {
		return nil
	}
	return s.missingOrTerminal(ctx, q, id)
}

func (s *Storage) missingOrTerminal(ctx context.Context, q querier, id string) error {
	var status models.SyncStatus
	err := q.QueryRowContext(ctx, `SELECT sync_status FROM sync_queue WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrItemNotFound
	}
	if err != nil {
		return store.Wrap("update_sync_status", err)
	}
	return fmt.Errorf("%w: %s is %s", store.ErrTerminalStatus, id, status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*models.SyncQueueItem, error) {
	item := &models.SyncQueueItem{}
	var (
		recordID       sql.NullString
		errorMessage   sql.NullString
		localTimestamp int64
		createdAt      int64
		syncedAt       sql.NullInt64
		lastRetryAt    sql.NullInt64
	)

	err := row.Scan(
		&item.ID,
		&item.TableName,
		&item.OperationType,
		&recordID,
		&item.RecordData,
		&localTimestamp,
		&item.SyncStatus,
		&item.RetryCount,
		&errorMessage,
		&item.CreatedBy,
		&createdAt,
		&syncedAt,
		&lastRetryAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sync queue item: %w", err)
	}

	item.RecordID = recordID.String
	item.ErrorMessage = errorMessage.String
	item.LocalTimestamp = fromNanos(localTimestamp)
	item.CreatedAt = fromNanos(createdAt)
	item.SyncedAt = timePtr(syncedAt)
	item.LastRetryAt = timePtr(lastRetryAt)

	return item, nil
}
