package pgremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/validation"
)

// SQLSTATE коды Postgres, которые отличаются от "временной" ошибки
const (
	sqlStateUniqueViolation = "23505"
)

// Config параметры облачной базы
type Config struct {
	BusinessKeys map[string]string // BusinessKeys таблица -> поле с уникальным бизнес-ключом
	DSN          string
	Schema       string // Schema по умолчанию public
	Tables       []string
}

// Backend реализует remote.Backend поверх Postgres
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	keys   map[string]string
	tables map[string]struct{}
	schema string
}

var _ remote.Backend = (*Backend)(nil)

// New подключается к Postgres
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	b, err := newBackend(pool, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	if err := validation.ValidateTableName(schema); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	tablesList := cfg.Tables
	if len(tablesList) == 0 {
		tablesList = models.DomainTables()
	}
	tables := make(map[string]struct{}, len(tablesList))
	for _, t := range tablesList {
		if err := validation.ValidateTableName(t); err != nil {
			return nil, fmt.Errorf("invalid table %q: %w", t, err)
		}
		tables[t] = struct{}{}
	}

	keys := cfg.BusinessKeys
	if keys == nil {
		keys = models.DefaultBusinessKeys()
	}
	for t, k := range keys {
		if err := validation.ValidateTableName(k); err != nil {
			return nil, fmt.Errorf("invalid business key %q for %s: %w", k, t, err)
		}
	}

	return &Backend{
		pool:   pool,
		logger: logger.With("component", "pgremote"),
		keys:   keys,
		tables: tables,
		schema: schema,
	}, nil
}

// Close закрывает пул соединений
func (b *Backend) Close() {
	b.pool.Close()
}

// EnsureSchema создает облачные таблицы и уникальные индексы бизнес-ключей
func (b *Backend) EnsureSchema(ctx context.Context) error {
	for _, stmt := range b.schemaStatements() {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	b.logger.Info("Cloud schema ensured", "schema", b.schema, "tables", len(b.tables))
	return nil
}

func (b *Backend) schemaStatements() []string {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{b.schema}.Sanitize()),
	}
	for _, t := range models.DomainTables() {
		if _, ok := b.tables[t]; !ok {
			continue
		}
		stmts = append(stmts, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				data       JSONB       NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, b.ident(t)))

		if key, ok := b.keys[t]; ok {
			stmts = append(stmts, fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((data->>'%s'))`,
				pgx.Identifier{t + "_" + key + "_uq"}.Sanitize(), b.ident(t), key,
			))
		}
	}
	return stmts
}

// Probe проверяет доступность базы
func (b *Backend) Probe(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Apply воспроизводит мутацию терминала
func (b *Backend) Apply(ctx context.Context, req remote.ApplyRequest) error {
	if _, ok := b.tables[req.Table]; !ok {
		return fmt.Errorf("unknown table %q", req.Table)
	}

	id := req.RecordID
	if id == "" {
		id = req.Payload.ID()
	}
	if id == "" {
		return fmt.Errorf("record id is required")
	}

	if req.Overwrite && req.Operation != models.OperationDelete {
		return b.overwrite(ctx, req.Table, id, req.Payload)
	}

	switch req.Operation {
	case models.OperationInsert:
		return b.insert(ctx, req.Table, id, req.Payload)
	case models.OperationUpdate:
		return b.update(ctx, req.Table, id, req.Payload)
	case models.OperationDelete:
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, b.ident(req.Table))
		if _, err := b.pool.Exec(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete: %w", err)
		}
		return nil
	}

	return fmt.Errorf("invalid operation type %q", req.Operation)
}

func (b *Backend) insert(ctx context.Context, table, id string, payload models.Record) error {
	data, err := encodeRecord(id, payload)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2::jsonb)`, b.ident(table))
	_, err = b.pool.Exec(ctx, query, id, data)
	if err == nil {
		return nil
	}

	if pgErr, ok := uniqueViolation(err); ok {
		existing := b.findCollision(ctx, table, id, payload)
		return &remote.ConflictError{
			Kind:   remote.ConflictDuplicate,
			Remote: existing,
			Msg:    pgErr.ConstraintName,
		}
	}
	return fmt.Errorf("failed to insert: %w", err)
}

func (b *Backend) update(ctx context.Context, table, id string, payload models.Record) error {
	data, err := encodeRecord(id, payload)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET data = data || $2::jsonb, updated_at = now() WHERE id = $1`, b.ident(table))
	tag, err := b.pool.Exec(ctx, query, id, data)
	if err != nil {
		if pgErr, ok := uniqueViolation(err); ok {
			return &remote.ConflictError{
				Kind:   remote.ConflictDuplicate,
				Remote: b.findCollision(ctx, table, id, payload),
				Msg:    pgErr.ConstraintName,
			}
		}
		return fmt.Errorf("failed to update: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return &remote.ConflictError{Kind: remote.ConflictNotFound, Msg: "record not found"}
	}
	return nil
}

// overwrite принимает payload безусловно: записи с тем же бизнес-ключом удаляются
func (b *Backend) overwrite(ctx context.Context, table, id string, payload models.Record) error {
	data, err := encodeRecord(id, payload)
	if err != nil {
		return err
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if key, ok := b.keys[table]; ok {
		if value, present := payload[key]; present && value != nil {
			query := fmt.Sprintf(`DELETE FROM %s WHERE data->>$1 = $2 AND id <> $3`, b.ident(table))
			if _, err := tx.Exec(ctx, query, key, fmt.Sprint(value), id); err != nil {
				return fmt.Errorf("failed to remove colliding records: %w", err)
			}
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, b.ident(table))
	if _, err := tx.Exec(ctx, query, id, data); err != nil {
		return fmt.Errorf("failed to overwrite: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// findCollision ищет облачную запись, с которой столкнулась вставка; nil если не нашлась
func (b *Backend) findCollision(ctx context.Context, table, id string, payload models.Record) models.Record {
	if rec, err := b.Fetch(ctx, table, id); err == nil {
		return rec
	}

	key, ok := b.keys[table]
	if !ok {
		return nil
	}
	value, present := payload[key]
	if !present || value == nil {
		return nil
	}

	query := fmt.Sprintf(`SELECT id, data FROM %s WHERE data->>$1 = $2 LIMIT 1`, b.ident(table))
	rec, err := scanRecord(b.pool.QueryRow(ctx, query, key, fmt.Sprint(value)))
	if err != nil {
		b.logger.Debug("Colliding record lookup failed", "table", table, "error", err)
		return nil
	}
	return rec
}

// Fetch возвращает облачную запись по id
func (b *Backend) Fetch(ctx context.Context, table, id string) (models.Record, error) {
	if _, ok := b.tables[table]; !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf(`SELECT id, data FROM %s WHERE id = $1`, b.ident(table))
	rec, err := scanRecord(b.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	return rec, nil
}

// List возвращает все облачные записи таблицы
func (b *Backend) List(ctx context.Context, table string) ([]models.Record, error) {
	if _, ok := b.tables[table]; !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf(`SELECT id, data FROM %s ORDER BY created_at, id`, b.ident(table))
	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list: %w", err)
	}
	return records, nil
}

func (b *Backend) ident(table string) string {
	return pgx.Identifier{b.schema, table}.Sanitize()
}

func uniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.SQLState() == sqlStateUniqueViolation {
		return pgErr, true
	}
	return nil, false
}

func encodeRecord(id string, payload models.Record) ([]byte, error) {
	rec := payload.Clone()
	if rec == nil {
		rec = models.Record{}
	}
	rec[models.FieldID] = id

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func scanRecord(row pgx.Row) (models.Record, error) {
	var (
		id   string
		data []byte
	)
	if err := row.Scan(&id, &data); err != nil {
		return nil, err
	}

	rec := models.Record{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
	}
	rec[models.FieldID] = id
	return rec, nil
}
