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

// HasTable reports whether table is a mirrored domain table
func (s *Storage) HasTable(table string) bool {
	_, ok := s.tables[table]
	return ok
}

// Tables returns the mirrored domain tables
func (s *Storage) Tables() []string {
	return models.DomainTables()
}

// ApplyLocal applies a mutation to a mirrored table and, when requested,
// enqueues the resulting snapshot in the same transaction
func (s *Storage) ApplyLocal(ctx context.Context, m store.Mutation) (*store.MutationResult, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if !s.HasTable(m.Table) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, m.Table)
	}
	if !m.Operation.Valid() {
		return nil, fmt.Errorf("invalid operation type %q", m.Operation)
	}

	now := nowUTC(m.Now)
	result := &store.MutationResult{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		snapshot, err := applyMutation(ctx, tx, m, now)
		if err != nil {
			return err
		}
		result.Snapshot = snapshot

		if !m.Enqueue {
			return nil
		}

		item := &models.SyncQueueItem{
			TableName:      m.Table,
			OperationType:  m.Operation,
			RecordID:       snapshot.ID(),
			RecordData:     snapshot,
			LocalTimestamp: now,
			CreatedAt:      now,
			CreatedBy:      m.Actor,
		}
		if err := insertQueueItem(ctx, tx, item); err != nil {
			return err
		}
		result.QueueItem = item
		return nil
	})
	if err != nil {
		return nil, store.Wrap("apply_local", err)
	}

	return result, nil
}

func applyMutation(ctx context.Context, tx *sql.Tx, m store.Mutation, now time.Time) (models.Record, error) {
	id := m.RecordID
	if id == "" {
		id = m.Payload.ID()
	}

	switch m.Operation {
	case models.OperationInsert:
		if id == "" {
			v7, err := uuid.NewV7()
			if err != nil {
				return nil, fmt.Errorf("failed to generate record id: %w", err)
			}
			id = v7.String()
		}
		snapshot := m.Payload.Clone()
		if snapshot == nil {
			snapshot = models.Record{}
		}
		snapshot[models.FieldID] = id

		query := fmt.Sprintf(`INSERT INTO %q (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`, m.Table)
		if _, err := tx.ExecContext(ctx, query, id, snapshot, toNanos(now), toNanos(now)); err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
		return snapshot, nil

	case models.OperationUpdate:
		if id == "" {
			return nil, fmt.Errorf("update requires a record id")
		}
		existing, err := getRecord(ctx, tx, m.Table, id)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		snapshot := existing.Merge(m.Payload)
		snapshot[models.FieldID] = id

		if err := upsertRecord(ctx, tx, m.Table, snapshot, now); err != nil {
			return nil, err
		}
		return snapshot, nil

	case models.OperationDelete:
		if id == "" {
			return nil, fmt.Errorf("delete requires a record id")
		}
		snapshot, err := getRecord(ctx, tx, m.Table, id)
		if errors.Is(err, store.ErrRecordNotFound) {
			snapshot = models.Record{models.FieldID: id}
		} else if err != nil {
			return nil, err
		}

		query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, m.Table)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return nil, fmt.Errorf("failed to delete record: %w", err)
		}
		return snapshot, nil
	}

	return nil, fmt.Errorf("invalid operation type %q", m.Operation)
}

// GetRecord retrieves a record by ID
func (s *Storage) GetRecord(ctx context.Context, table, id string) (models.Record, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if !s.HasTable(table) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}

	rec, err := getRecord(ctx, s.db, table, id)
	if err != nil {
		return nil, store.Wrap("get_record", err)
	}
	return rec, nil
}

func getRecord(ctx context.Context, q querier, table, id string) (models.Record, error) {
	query := fmt.Sprintf(`SELECT data FROM %q WHERE id = ?`, table)

	var rec models.Record
	if err := q.QueryRowContext(ctx, query, id).Scan(&rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if rec == nil {
		rec = models.Record{}
	}
	rec[models.FieldID] = id
	return rec, nil
}

// ListRecords returns all records of a table ordered by creation time
func (s *Storage) ListRecords(ctx context.Context, table string) ([]models.Record, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if !s.HasTable(table) {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}

	query := fmt.Sprintf(`SELECT id, data FROM %q ORDER BY created_at ASC, rowid ASC`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Wrap("list_records", fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var (
			id  string
			rec models.Record
		)
		if err := rows.Scan(&id, &rec); err != nil {
			return nil, store.Wrap("list_records", fmt.Errorf("failed to scan record: %w", err))
		}
		if rec == nil {
			rec = models.Record{}
		}
		rec[models.FieldID] = id
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list_records", err)
	}

	return records, nil
}

// ReplaceRecord stores record in place of oldID without enqueueing.
// Used when the cloud version wins a conflict: the cloud id may differ from the local one.
func (s *Storage) ReplaceRecord(ctx context.Context, table, oldID string, record models.Record) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if !s.HasTable(table) {
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}

	newID := record.ID()
	if newID == "" {
		newID = oldID
	}
	if newID == "" {
		return fmt.Errorf("replace requires a record id")
	}
	rec := record.Clone()
	rec[models.FieldID] = newID

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if oldID != "" && oldID != newID {
			query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, table)
			if _, err := tx.ExecContext(ctx, query, oldID); err != nil {
				return fmt.Errorf("failed to delete replaced record: %w", err)
			}
		}
		return upsertRecord(ctx, tx, table, rec, time.Now())
	})

	return store.Wrap("replace_record", err)
}

// DeleteRecord removes a record without enqueueing. Missing records are ignored.
func (s *Storage) DeleteRecord(ctx context.Context, table, id string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if !s.HasTable(table) {
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}

	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return store.Wrap("delete_record", fmt.Errorf("failed to delete record: %w", err))
	}
	return nil
}

func upsertRecord(ctx context.Context, tx *sql.Tx, table string, rec models.Record, now time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %q (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, table)

	if _, err := tx.ExecContext(ctx, query, rec.ID(), rec, toNanos(now), toNanos(now)); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}
