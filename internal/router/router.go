package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/store"
	"github.com/iudanet/possync/internal/validation"
)

// Operation доменная операция
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationRead   Operation = "read"
)

// Поля временных меток, которые роутер проставляет в записи
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// ErrInvalidOperation indicates an operation outside create/update/delete/read
var ErrInvalidOperation = errors.New("invalid operation")

// Request одна доменная операция
type Request struct {
	Payload   models.Record
	Operation Operation
	Table     string
	RecordID  string
	ActorID   string
}

// Result определенный исход операции. SyncStatus synced означает, что облако
// приняло изменение; pending - изменение сохранено только локально и ждет sync engine.
type Result struct {
	Data        any
	SyncStatus  models.SyncStatus
	Error       string
	QueueItemID string
	Success     bool
}

// Connectivity текущее представление о доступности облака
type Connectivity interface {
	IsOnline() bool
}

// Router единая точка входа доменных операций терминала
type Router struct {
	store   store.RecordStorage
	backend remote.Backend
	monitor Connectivity
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// Option настраивает Router
type Option func(*Router)

// WithTimeout ограничивает каждый вызов облака
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock заменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New создает роутер
func New(st store.RecordStorage, backend remote.Backend, monitor Connectivity, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		store:   st,
		backend: backend,
		monitor: monitor,
		logger:  logger.With("component", "router"),
		now:     time.Now,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle выполняет операцию. Ошибка облака никогда не возвращается вызывающему:
// операция безусловно уходит на локальный путь.
func (r *Router) Handle(ctx context.Context, req Request) Result {
	if err := r.validate(&req); err != nil {
		return failed(err)
	}

	now := r.now().UTC()
	payload := prepare(req, now)

	if r.monitor != nil && r.monitor.IsOnline() && r.backend != nil {
		res, err := r.handleRemote(ctx, req, payload)
		if err == nil {
			return res
		}
		r.logger.Warn("Remote operation failed, falling back to local store",
			"operation", req.Operation,
			"table", req.Table,
			"record_id", req.RecordID,
			"error", err,
		)
	}

	return r.handleLocal(ctx, req, payload, now)
}

func (r *Router) validate(req *Request) error {
	switch req.Operation {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, req.Operation)
	}

	if err := validation.ValidateTableName(req.Table); err != nil {
		return err
	}
	if !r.store.HasTable(req.Table) {
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, req.Table)
	}

	if req.RecordID == "" && req.Operation != OperationRead {
		req.RecordID = req.Payload.ID()
	}

	switch req.Operation {
	case OperationUpdate, OperationDelete:
		if err := validation.ValidateRecordID(req.RecordID); err != nil {
			return err
		}
	case OperationCreate, OperationRead:
		if req.RecordID != "" {
			if err := validation.ValidateRecordID(req.RecordID); err != nil {
				return err
			}
		}
	}

	return nil
}

// prepare назначает id и временные метки. Вызывается до выбора пути,
// чтобы облачная и локальная копии создаваемой записи совпадали.
func prepare(req Request, now time.Time) models.Record {
	ts := now.Format(time.RFC3339Nano)

	switch req.Operation {
	case OperationCreate:
		rec := req.Payload.Clone()
		if rec == nil {
			rec = models.Record{}
		}
		id := req.RecordID
		if id == "" {
			if v7, err := uuid.NewV7(); err == nil {
				id = v7.String()
			} else {
				id = uuid.NewString()
			}
		}
		rec[models.FieldID] = id
		if _, ok := rec[FieldCreatedAt]; !ok {
			rec[FieldCreatedAt] = ts
		}
		rec[FieldUpdatedAt] = ts
		return rec

	case OperationUpdate:
		rec := req.Payload.Clone()
		if rec == nil {
			rec = models.Record{}
		}
		rec[models.FieldID] = req.RecordID
		rec[FieldUpdatedAt] = ts
		return rec
	}

	return req.Payload
}

func (r *Router) handleRemote(ctx context.Context, req Request, payload models.Record) (Result, error) {
	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if req.Operation == OperationRead {
		return r.readRemote(rctx, req)
	}

	apply := remote.ApplyRequest{
		Table:     req.Table,
		Operation: toStoreOp(req.Operation),
		RecordID:  payload.ID(),
		Payload:   payload,
	}
	if req.Operation == OperationDelete {
		apply.RecordID = req.RecordID
	}

	if err := r.backend.Apply(rctx, apply); err != nil {
		return Result{}, err
	}

	// Облако приняло изменение: отражаем его локально без постановки в очередь
	data := any(payload)
	mirrored, err := r.store.ApplyLocal(ctx, store.Mutation{
		Now:       r.now(),
		Payload:   payload,
		Operation: apply.Operation,
		Table:     req.Table,
		RecordID:  apply.RecordID,
		Actor:     req.ActorID,
	})
	if err != nil {
		r.logger.Warn("Failed to mirror remote change locally",
			"table", req.Table, "record_id", apply.RecordID, "error", err)
	} else if req.Operation != OperationDelete {
		data = mirrored.Snapshot
	}

	if req.Operation == OperationDelete {
		data = models.Record{models.FieldID: req.RecordID}
	}

	return Result{Success: true, SyncStatus: models.SyncStatusSynced, Data: data}, nil
}

func (r *Router) readRemote(ctx context.Context, req Request) (Result, error) {
	if req.RecordID == "" {
		records, err := r.backend.List(ctx, req.Table)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, SyncStatus: models.SyncStatusSynced, Data: records}, nil
	}

	rec, err := r.backend.Fetch(ctx, req.Table, req.RecordID)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, SyncStatus: models.SyncStatusSynced, Data: rec}, nil
}

func (r *Router) handleLocal(ctx context.Context, req Request, payload models.Record, now time.Time) Result {
	if req.Operation == OperationRead {
		return r.readLocal(ctx, req)
	}

	res, err := r.store.ApplyLocal(ctx, store.Mutation{
		Now:       now,
		Payload:   payload,
		Operation: toStoreOp(req.Operation),
		Table:     req.Table,
		RecordID:  req.RecordID,
		Actor:     req.ActorID,
		Enqueue:   true,
	})
	if err != nil {
		r.logger.Error("Local operation failed",
			"operation", req.Operation, "table", req.Table, "error", err)
		return failed(err)
	}

	result := Result{
		Success:    true,
		SyncStatus: models.SyncStatusPending,
		Data:       res.Snapshot,
	}
	if res.QueueItem != nil {
		result.QueueItemID = res.QueueItem.ID
	}
	return result
}

// readLocal отдает последний локальный снимок, который может отставать от облака
func (r *Router) readLocal(ctx context.Context, req Request) Result {
	if req.RecordID == "" {
		records, err := r.store.ListRecords(ctx, req.Table)
		if err != nil {
			return failed(err)
		}
		return Result{Success: true, SyncStatus: models.SyncStatusPending, Data: records}
	}

	rec, err := r.store.GetRecord(ctx, req.Table, req.RecordID)
	if err != nil {
		return failed(err)
	}
	return Result{Success: true, SyncStatus: models.SyncStatusPending, Data: rec}
}

func toStoreOp(op Operation) models.OperationType {
	switch op {
	case OperationCreate:
		return models.OperationInsert
	case OperationUpdate:
		return models.OperationUpdate
	case OperationDelete:
		return models.OperationDelete
	}
	return ""
}

func failed(err error) Result {
	return Result{
		Success:    false,
		SyncStatus: models.SyncStatusFailed,
		Error:      err.Error(),
	}
}
