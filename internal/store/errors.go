package store

import (
	"errors"
	"fmt"
)

// Common local store errors
var (
	// ErrNotReady indicates that the schema has not been initialized yet.
	// All operations fail fast with it instead of queueing silently.
	ErrNotReady = errors.New("local store is not ready")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrRecordNotFound indicates that the mirrored domain record does not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrItemNotFound indicates that the sync queue item does not exist
	ErrItemNotFound = errors.New("sync queue item not found")

	// ErrConflictNotFound indicates that the conflict does not exist
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrConflictResolved indicates that the conflict was already resolved
	ErrConflictResolved = errors.New("conflict already resolved")

	// ErrUnknownTable indicates that the table is not part of the domain schema
	ErrUnknownTable = errors.New("unknown domain table")

	// ErrTableInUse indicates that the table is still part of the domain schema
	ErrTableInUse = errors.New("table is part of the domain schema")

	// ErrDeviceNotFound indicates that the device is not in the registry
	ErrDeviceNotFound = errors.New("device not registered")

	// ErrTerminalStatus indicates an attempt to move a queue item out of a terminal status
	ErrTerminalStatus = errors.New("sync queue item is in a terminal status")
)

// StorageError оборачивает ошибку ввода-вывода или нарушения ограничения
// локального хранилища. Op содержит имя операции для логов.
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped into a *StorageError unless it is nil or already
// one of the package sentinels that callers match with errors.Is
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, sentinel := range []error{
		ErrNotReady, ErrStorageClosed, ErrRecordNotFound, ErrItemNotFound,
		ErrConflictNotFound, ErrConflictResolved, ErrUnknownTable, ErrTableInUse,
		ErrTerminalStatus, ErrDeviceNotFound,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err carries a *StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
