package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/possync/internal/models"
)

//go:generate moq -out backend_mock.go . Backend

// Backend облачная сторона синхронизации
type Backend interface {
	// Apply replays one mutation. Returns nil on success, *ConflictError when the
	// remote state contradicts the mutation, any other error is transient.
	Apply(ctx context.Context, req ApplyRequest) error

	// Probe checks reachability with a cheap request
	Probe(ctx context.Context) error

	// Fetch returns the current remote record; ErrNotFound if it does not exist
	Fetch(ctx context.Context, table, id string) (models.Record, error)

	// List returns all remote records of a table
	List(ctx context.Context, table string) ([]models.Record, error)
}

// ApplyRequest одна мутация для облака
type ApplyRequest struct {
	Payload   models.Record        `json:"payload"`
	Table     string               `json:"table"`
	Operation models.OperationType `json:"operation"`
	RecordID  string               `json:"record_id,omitempty"`
	// Overwrite заставляет облако принять payload, удалив записи с тем же бизнес-ключом
	Overwrite bool `json:"overwrite,omitempty"`
}

// ConflictKind вид конфликта, сообщенный облаком
type ConflictKind string

const (
	// ConflictDuplicate запись с тем же ключом уже существует
	ConflictDuplicate ConflictKind = "duplicate"
	// ConflictNotFound изменяемая запись отсутствует в облаке
	ConflictNotFound ConflictKind = "not_found"
)

var (
	// ErrNotFound indicates that the remote record does not exist
	ErrNotFound = errors.New("remote record not found")

	// ErrOffline indicates that the cloud is not reachable right now
	ErrOffline = errors.New("cloud is offline")

	// ErrUnauthorized indicates that the backend rejected the device credentials
	ErrUnauthorized = errors.New("remote rejected credentials")
)

// ConflictError облако отвергло мутацию из-за противоречия состояний.
// Remote содержит текущую облачную запись, если облако ее вернуло.
type ConflictError struct {
	Remote models.Record
	Kind   ConflictKind
	Msg    string
}

func (e *ConflictError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("remote conflict (%s): %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("remote conflict (%s)", e.Kind)
}

// AsConflict extracts a *ConflictError from err
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsTransient reports whether err is worth retrying: every failure except
// a reported conflict counts as transient
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	_, conflict := AsConflict(err)
	return !conflict
}
