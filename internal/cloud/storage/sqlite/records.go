package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
)

// Apply воспроизводит мутацию без указания устройства
func (s *Storage) Apply(ctx context.Context, req remote.ApplyRequest) error {
	return s.ApplyAs(ctx, "", req)
}

// ApplyAs воспроизводит мутацию терминала deviceID.
//
//   - INSERT существующего id или занятого бизнес-ключа: конфликт duplicate
//   - UPDATE отсутствующей записи: конфликт not_found, иначе поля сливаются
//   - DELETE отсутствующей записи: конфликт not_found
//   - Overwrite: записи с тем же бизнес-ключом удаляются, payload принимается целиком
func (s *Storage) ApplyAs(ctx context.Context, deviceID string, req remote.ApplyRequest) error {
	if !models.IsDomainTable(req.Table) {
		return fmt.Errorf("%w: %s", storage.ErrUnknownTable, req.Table)
	}
	if !req.Operation.Valid() {
		return fmt.Errorf("%w: operation %q", storage.ErrInvalidMutation, req.Operation)
	}

	id := req.RecordID
	if id == "" {
		id = req.Payload.ID()
	}
	if id == "" {
		return fmt.Errorf("%w: record id is required", storage.ErrInvalidMutation)
	}

	now := toMillis(s.now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getRecord(ctx, tx, req.Table, id)
		if err != nil {
			return err
		}

		if req.Overwrite && req.Operation != models.OperationDelete {
			return s.overwrite(ctx, tx, req.Table, id, deviceID, req.Payload, now)
		}

		switch req.Operation {
		case models.OperationInsert:
			if existing != nil {
				return &remote.ConflictError{Kind: remote.ConflictDuplicate, Remote: existing, Msg: "record already exists"}
			}
			rec := withID(req.Payload, id)
			if err := s.checkCollision(ctx, tx, req.Table, id, rec); err != nil {
				return err
			}
			query := `
				INSERT INTO cloud_records (table_name, id, data, business_key, updated_by, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`
			if _, err := tx.ExecContext(ctx, query, req.Table, id, rec, s.businessKey(req.Table, rec), deviceID, now, now); err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}

		case models.OperationUpdate:
			if existing == nil {
				return &remote.ConflictError{Kind: remote.ConflictNotFound, Msg: "record not found"}
			}
			rec := withID(existing.Merge(req.Payload), id)
			if err := s.checkCollision(ctx, tx, req.Table, id, rec); err != nil {
				return err
			}
			query := `
				UPDATE cloud_records SET data = ?, business_key = ?, updated_by = ?, updated_at = ?
				WHERE table_name = ? AND id = ?
			`
			if _, err := tx.ExecContext(ctx, query, rec, s.businessKey(req.Table, rec), deviceID, now, req.Table, id); err != nil {
				return fmt.Errorf("failed to update record: %w", err)
			}

		case models.OperationDelete:
			if existing == nil {
				return &remote.ConflictError{Kind: remote.ConflictNotFound, Msg: "record not found"}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM cloud_records WHERE table_name = ? AND id = ?`, req.Table, id); err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) overwrite(ctx context.Context, tx *sql.Tx, table, id, deviceID string, payload models.Record, now int64) error {
	rec := withID(payload, id)
	key := s.businessKey(table, rec)

	if key.Valid {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM cloud_records WHERE table_name = ? AND business_key = ? AND id <> ?`,
			table, key.String, id)
		if err != nil {
			return fmt.Errorf("failed to remove colliding records: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Info("Overwrite removed colliding records", "table", table, "record_id", id, "count", n)
		}
	}

	query := `
		INSERT INTO cloud_records (table_name, id, data, business_key, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name, id) DO UPDATE SET
			data = excluded.data,
			business_key = excluded.business_key,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, table, id, rec, key, deviceID, now, now); err != nil {
		return fmt.Errorf("failed to overwrite record: %w", err)
	}
	return nil
}

// checkCollision возвращает конфликт duplicate, если бизнес-ключ rec занят другой записью
func (s *Storage) checkCollision(ctx context.Context, tx *sql.Tx, table, id string, rec models.Record) error {
	key := s.businessKey(table, rec)
	if !key.Valid {
		return nil
	}

	query := `
		SELECT id, data FROM cloud_records
		WHERE table_name = ? AND business_key = ? AND id <> ?
		LIMIT 1
	`
	other, err := scanRecord(tx.QueryRowContext(ctx, query, table, key.String, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check business key: %w", err)
	}

	return &remote.ConflictError{
		Kind:   remote.ConflictDuplicate,
		Remote: other,
		Msg:    fmt.Sprintf("%s %q already used by %s", s.keys[table], key.String, other.ID()),
	}
}

// businessKey значение уникального поля таблицы; NULL если поле не настроено или пусто
func (s *Storage) businessKey(table string, rec models.Record) sql.NullString {
	field, ok := s.keys[table]
	if !ok {
		return sql.NullString{}
	}
	value, present := rec[field]
	if !present || value == nil {
		return sql.NullString{}
	}
	str := fmt.Sprint(value)
	if str == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: str, Valid: true}
}

// Fetch возвращает облачную запись по id
func (s *Storage) Fetch(ctx context.Context, table, id string) (models.Record, error) {
	if !models.IsDomainTable(table) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownTable, table)
	}

	rec, err := getRecord(ctx, s.db, table, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, remote.ErrNotFound
	}
	return rec, nil
}

// List возвращает все облачные записи таблицы в порядке создания
func (s *Storage) List(ctx context.Context, table string) ([]models.Record, error) {
	if !models.IsDomainTable(table) {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownTable, table)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM cloud_records WHERE table_name = ? ORDER BY created_at, id`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getRecord возвращает nil без ошибки, если записи нет
func getRecord(ctx context.Context, q rowQuerier, table, id string) (models.Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx,
		`SELECT id, data FROM cloud_records WHERE table_name = ? AND id = ?`, table, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func scanRecord(row scanner) (models.Record, error) {
	var (
		id  string
		rec models.Record
	)
	if err := row.Scan(&id, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = models.Record{}
	}
	rec[models.FieldID] = id
	return rec, nil
}

func withID(payload models.Record, id string) models.Record {
	rec := payload.Clone()
	if rec == nil {
		rec = models.Record{}
	}
	rec[models.FieldID] = id
	return rec
}
