package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite implementation of the terminal local store
type Storage struct {
	db      *sql.DB
	logger  *slog.Logger
	readyCh chan struct{}
	tables  map[string]struct{}
	once    sync.Once
	ready   atomic.Bool
	closed  atomic.Bool
}

var _ store.Storage = (*Storage)(nil)

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database without touching the schema.
// The storage reports ErrNotReady until Init completes.
// Use ":memory:" for in-memory database (useful for testing)
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite допускает только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	tables := make(map[string]struct{})
	for _, t := range models.DomainTables() {
		tables[t] = struct{}{}
	}

	return &Storage{
		db:      db,
		logger:  logger.With("component", "local_store"),
		readyCh: make(chan struct{}),
		tables:  tables,
	}, nil
}

// New opens the database and initializes the schema
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	s, err := Open(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Init runs migrations, returns items interrupted mid-replay to pending
// and marks the storage ready. Calling Init again is a no-op.
func (s *Storage) Init(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrStorageClosed
	}
	if s.ready.Load() {
		return nil
	}

	if err := s.runMigrations(); err != nil {
		return &store.StorageError{Op: "init", Err: fmt.Errorf("failed to run migrations: %w", err)}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET sync_status = ? WHERE sync_status = ?`,
		models.SyncStatusPending, models.SyncStatusSyncing,
	)
	if err != nil {
		return &store.StorageError{Op: "init", Err: fmt.Errorf("failed to reset interrupted items: %w", err)}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Warn("Returned interrupted sync items to pending", "count", n)
	}

	s.ready.Store(true)
	s.once.Do(func() { close(s.readyCh) })
	s.logger.Info("Local store ready")

	return nil
}

// Ready returns a channel closed once Init completes
func (s *Storage) Ready() <-chan struct{} {
	return s.readyCh
}

// IsReady reports whether Init completed
func (s *Storage) IsReady() bool {
	return s.ready.Load() && !s.closed.Load()
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

// checkReady fails fast before Init and after Close
func (s *Storage) checkReady() error {
	if s.closed.Load() {
		return store.ErrStorageClosed
	}
	if !s.ready.Load() {
		return store.ErrNotReady
	}
	return nil
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetLogger(gooseLogger{logger: s.logger})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// withTx выполняет fn в транзакции
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// gooseLogger направляет вывод goose в slog
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Время хранится в INTEGER колонках как unix nanoseconds
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nowUTC(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
