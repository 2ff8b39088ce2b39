// Package storage описывает хранилище облачной стороны: учетные записи
// терминалов, refresh токены и облачные копии доменных таблиц.
package storage

import (
	"context"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
)

// Account учетная запись терминала в облаке
type Account struct {
	CreatedAt   time.Time
	LastLogin   *time.Time
	DeviceID    string
	AuthKeyHash string // SHA256 хеш auth_key (hex-encoded)
	PublicSalt  string // base64 соль для вывода ключей на терминале
}

// RefreshToken выданный терминалу refresh token
type RefreshToken struct {
	ExpiresAt time.Time
	CreatedAt time.Time
	Token     string
	DeviceID  string
}

// AccountStorage defines interface for device account persistence
type AccountStorage interface {
	// CreateAccount returns ErrAccountExists if the device is already registered
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount returns ErrAccountNotFound if the device is unknown
	GetAccount(ctx context.Context, deviceID string) (*Account, error)

	// ListAccounts returns accounts ordered by creation time
	ListAccounts(ctx context.Context) ([]*Account, error)

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, deviceID string, at time.Time) error

	// DeleteAccount removes the account together with its refresh tokens
	DeleteAccount(ctx context.Context, deviceID string) error
}

// TokenStorage defines interface for refresh token persistence
type TokenStorage interface {
	// SaveRefreshToken stores a new refresh token
	// If token with same token value exists, it will be replaced
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken returns ErrTokenNotFound if token doesn't exist
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken returns ErrTokenNotFound if token doesn't exist
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteDeviceTokens deletes all refresh tokens of a device
	DeleteDeviceTokens(ctx context.Context, deviceID string) (int, error)

	// DeleteExpiredTokens removes tokens expired before now
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}

// RecordStorage облачные копии доменных таблиц.
// Apply возвращает *remote.ConflictError, когда облачное состояние противоречит мутации.
type RecordStorage interface {
	ApplyAs(ctx context.Context, deviceID string, req remote.ApplyRequest) error
	Fetch(ctx context.Context, table, id string) (models.Record, error)
	List(ctx context.Context, table string) ([]models.Record, error)
	Ping(ctx context.Context) error
}
