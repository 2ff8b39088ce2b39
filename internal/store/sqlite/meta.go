package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/possync/internal/store"
)

// SetMeta stores a bookkeeping value in sync_status
func (s *Storage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.Execute(ctx, `
		INSERT INTO sync_status (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetMeta returns a bookkeeping value; found is false when the key is absent
func (s *Storage) GetMeta(ctx context.Context, key string) (string, bool, error) {
	rows, err := s.Query(ctx, `SELECT value FROM sync_status WHERE key = ?`, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}

	value, ok := rows[0]["value"].(string)
	if !ok {
		return "", false, store.Wrap("get_meta", fmt.Errorf("unexpected value type %T", rows[0]["value"]))
	}
	return value, true, nil
}
