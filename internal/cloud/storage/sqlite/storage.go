package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/validation"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose хранит dialect и base FS глобально
var migrateMu sync.Mutex

// Storage represents SQLite storage of the cloud side
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
	keys   map[string]string
	now    func() time.Time
}

var (
	_ storage.AccountStorage = (*Storage)(nil)
	_ storage.TokenStorage   = (*Storage)(nil)
	_ storage.RecordStorage  = (*Storage)(nil)
	_ remote.Backend         = (*Storage)(nil)
)

// Option настраивает Storage
type Option func(*Storage)

// WithBusinessKeys задает поле бизнес-ключа для таблиц (таблица -> поле)
func WithBusinessKeys(keys map[string]string) Option {
	return func(s *Storage) {
		if keys != nil {
			s.keys = keys
		}
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates a new SQLite storage instance
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string, logger *slog.Logger, opts ...Option) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Storage{
		logger: logger.With("component", "cloud_store"),
		keys:   models.DefaultBusinessKeys(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for table, field := range s.keys {
		if !models.IsDomainTable(table) {
			return nil, fmt.Errorf("business key for %w: %s", storage.ErrUnknownTable, table)
		}
		if err := validation.ValidateTableName(field); err != nil {
			return nil, fmt.Errorf("invalid business key %q for %s: %w", field, table, err)
		}
	}

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

	s.db = db

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность базы
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Probe реализует remote.Backend для встроенного облака
func (s *Storage) Probe(ctx context.Context) error {
	return s.Ping(ctx)
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}
