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

const conflictColumns = `id, table_name, record_id, queue_item_id, conflict_type, local_data,
	cloud_data, resolution, resolved_by, resolved_at, created_at`

// RecordConflict stores a new conflict in the ledger
func (s *Storage) RecordConflict(ctx context.Context, conflict *models.DataConflict) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return store.Wrap("record_conflict", insertConflict(ctx, s.db, conflict))
}

func insertConflict(ctx context.Context, q querier, c *models.DataConflict) error {
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conflict id: %w", err)
		}
		c.ID = id.String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Resolution == "" {
		c.Resolution = models.ResolutionPending
	}
	localData := c.LocalData
	if localData == nil {
		localData = models.Record{}
	}

	query := `
		INSERT INTO data_conflicts (` + conflictColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		c.ID,
		c.TableName,
		c.RecordID,
		nullString(c.QueueItemID),
		c.ConflictType,
		localData,
		c.CloudData,
		c.Resolution,
		nullString(c.ResolvedBy),
		nullNanos(c.ResolvedAt),
		toNanos(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conflict: %w", err)
	}

	return nil
}

// GetConflict retrieves a conflict by ID
func (s *Storage) GetConflict(ctx context.Context, id string) (*models.DataConflict, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM data_conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrConflictNotFound
		}
		return nil, store.Wrap("get_conflict", err)
	}
	return c, nil
}

// ResolveConflict stores the resolution of a pending conflict.
// A non-nil cloudData replaces the stored cloud snapshot.
func (s *Storage) ResolveConflict(ctx context.Context, id string, resolution models.Resolution, resolvedBy string, cloudData models.Record) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if !resolution.Valid() {
		return fmt.Errorf("invalid resolution %q", resolution)
	}

	query := `
		UPDATE data_conflicts
		SET resolution = ?, resolved_by = ?, resolved_at = ?, cloud_data = COALESCE(?, cloud_data)
		WHERE id = ? AND resolution = 'pending'
	`

	res, err := s.db.ExecContext(ctx, query,
		resolution, nullString(resolvedBy), toNanos(time.Now()), cloudData, id,
	)
	if err != nil {
		return store.Wrap("resolve_conflict", fmt.Errorf("failed to resolve conflict: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("resolve_conflict", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM data_conflicts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrConflictNotFound
	}
	if err != nil {
		return store.Wrap("resolve_conflict", err)
	}
	return store.ErrConflictResolved
}

// ListPendingConflicts returns unresolved conflicts, oldest first
func (s *Storage) ListPendingConflicts(ctx context.Context) ([]*models.DataConflict, error) {
	return s.listConflicts(ctx, `WHERE resolution = 'pending'`)
}

// ListConflicts returns the whole ledger, oldest first
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.DataConflict, error) {
	return s.listConflicts(ctx, "")
}

func (s *Storage) listConflicts(ctx context.Context, where string) ([]*models.DataConflict, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	query := `SELECT ` + conflictColumns + ` FROM data_conflicts ` + where + ` ORDER BY created_at ASC, rowid ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Wrap("list_conflicts", fmt.Errorf("failed to query conflicts: %w", err))
	}
	defer rows.Close()

	conflicts := make([]*models.DataConflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, store.Wrap("list_conflicts", err)
		}
		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list_conflicts", err)
	}

	return conflicts, nil
}

func scanConflict(row rowScanner) (*models.DataConflict, error) {
	c := &models.DataConflict{}
	var (
		queueItemID sql.NullString
		resolvedBy  sql.NullString
		resolvedAt  sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(
		&c.ID,
		&c.TableName,
		&c.RecordID,
		&queueItemID,
		&c.ConflictType,
		&c.LocalData,
		&c.CloudData,
		&c.Resolution,
		&resolvedBy,
		&resolvedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan conflict: %w", err)
	}

	c.QueueItemID = queueItemID.String
	c.ResolvedBy = resolvedBy.String
	c.ResolvedAt = timePtr(resolvedAt)
	c.CreatedAt = fromNanos(createdAt)

	return c, nil
}
