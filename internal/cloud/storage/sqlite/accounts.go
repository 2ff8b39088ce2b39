package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/possync/internal/cloud/storage"
)

// CreateAccount registers a new device account
func (s *Storage) CreateAccount(ctx context.Context, account *storage.Account) error {
	query := `
		INSERT INTO device_accounts (device_id, auth_key_hash, public_salt, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)
	`

	var lastLogin sql.NullInt64
	if account.LastLogin != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*account.LastLogin), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		account.DeviceID,
		account.AuthKeyHash,
		account.PublicSalt,
		toMillis(account.CreatedAt),
		lastLogin,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: device_accounts.device_id") {
			return storage.ErrAccountExists
		}
		return fmt.Errorf("failed to insert device account: %w", err)
	}

	return nil
}

// GetAccount retrieves device account by device id
func (s *Storage) GetAccount(ctx context.Context, deviceID string) (*storage.Account, error) {
	query := `
		SELECT device_id, auth_key_hash, public_salt, created_at, last_login
		FROM device_accounts
		WHERE device_id = ?
	`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get device account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all device accounts
func (s *Storage) ListAccounts(ctx context.Context) ([]*storage.Account, error) {
	query := `
		SELECT device_id, auth_key_hash, public_salt, created_at, last_login
		FROM device_accounts
		ORDER BY created_at, device_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list device accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*storage.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list device accounts: %w", err)
	}
	return accounts, nil
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, deviceID string, at time.Time) error {
	query := `UPDATE device_accounts SET last_login = ? WHERE device_id = ?`

	result, err := s.db.ExecContext(ctx, query, toMillis(at), deviceID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return expectRow(result, storage.ErrAccountNotFound)
}

// DeleteAccount deletes the account, refresh tokens go with it
func (s *Storage) DeleteAccount(ctx context.Context, deviceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM device_accounts WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device account: %w", err)
	}
	return expectRow(result, storage.ErrAccountNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*storage.Account, error) {
	var (
		account   storage.Account
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := row.Scan(
		&account.DeviceID,
		&account.AuthKeyHash,
		&account.PublicSalt,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}

	account.CreatedAt = fromMillis(createdAt)
	if lastLogin.Valid {
		t := fromMillis(lastLogin.Int64)
		account.LastLogin = &t
	}
	return &account, nil
}

// expectRow возвращает notFound, если запрос не затронул ни одной строки
func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
