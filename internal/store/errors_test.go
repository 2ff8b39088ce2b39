package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))

	ioErr := errors.New("disk I/O error")
	err := Wrap("insert", ioErr)
	assert.True(t, IsStorageError(err))
	assert.ErrorIs(t, err, ioErr)
	assert.Contains(t, err.Error(), "storage insert")

	// Повторная обертка не добавляет слой
	assert.Equal(t, err, Wrap("other", err))

	// Sentinel ошибки остаются распознаваемыми и не превращаются в StorageError
	wrapped := Wrap("get", fmt.Errorf("lookup: %w", ErrRecordNotFound))
	assert.ErrorIs(t, wrapped, ErrRecordNotFound)
	assert.False(t, IsStorageError(wrapped))

	assert.ErrorIs(t, Wrap("any", ErrNotReady), ErrNotReady)
}
