// Package admin административный HTTP API терминала
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/router"
	"github.com/iudanet/possync/internal/store"
	"github.com/iudanet/possync/internal/syncengine"
	"github.com/iudanet/possync/internal/validation"
	"github.com/iudanet/possync/pkg/api"
)

// Engine административные операции sync engine
type Engine interface {
	Status(ctx context.Context) (*syncengine.Status, error)
	Statistics(ctx context.Context) (*syncengine.Statistics, error)
	ForceSync(ctx context.Context) (syncengine.PassResult, error)
	RetryFailedItems(ctx context.Context) (int, error)
	ClearFailedItems(ctx context.Context) (int, error)
	ClearLegacyItems(ctx context.Context, table string) (int, error)
	ResolveConflict(ctx context.Context, id string, resolution models.Resolution, resolvedBy string, merged models.Record) error
}

// OperationRouter единая точка входа доменных операций
type OperationRouter interface {
	Handle(ctx context.Context, req router.Request) router.Result
}

// Ledger чтение журнала конфликтов
type Ledger interface {
	ListPendingConflicts(ctx context.Context) ([]*models.DataConflict, error)
	ListConflicts(ctx context.Context) ([]*models.DataConflict, error)
}

// Devices реестр устройств
type Devices interface {
	RegisterDevice(ctx context.Context, device *models.DeviceInfo) error
	ListDevices(ctx context.Context) ([]*models.DeviceInfo, error)
}

// Network текущее состояние сети
type Network interface {
	State() models.NetworkState
	ForceCheck(ctx context.Context) models.NetworkState
}

// Readiness готовность локального хранилища
type Readiness interface {
	IsReady() bool
}

// Handler обрабатывает запросы административного API
type Handler struct {
	engine  Engine
	router  OperationRouter
	ledger  Ledger
	devices Devices
	network Network
	ready   Readiness
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler создает handler. network и ready могут быть nil.
func NewHandler(logger *slog.Logger, engine Engine, rt OperationRouter, ledger Ledger, devices Devices, network Network, ready Readiness) *Handler {
	return &Handler{
		engine:  engine,
		router:  rt,
		ledger:  ledger,
		devices: devices,
		network: network,
		ready:   ready,
		logger:  logger,
		now:     time.Now,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:      "ok",
		NetworkMode: string(models.NetworkModeOffline),
		Ready:       true,
	}
	if h.network != nil {
		resp.NetworkMode = string(h.network.ForceCheck(r.Context()).Mode)
	}
	if h.ready != nil && !h.ready.IsReady() {
		resp.Status = "starting"
		resp.Ready = false
		h.sendJSON(w, resp, http.StatusServiceUnavailable)
		return
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// Status обрабатывает GET /api/v1/sync/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(r.Context())
	if err != nil {
		h.handleError(w, r, "get status", err)
		return
	}
	h.sendJSON(w, api.StatusResponse{
		LastSyncTime:  st.LastSyncTime,
		NetworkMode:   string(st.NetworkMode),
		PendingCount:  st.PendingCount,
		ConflictCount: st.ConflictCount,
		DeviceCount:   st.DeviceCount,
		IsOnline:      st.IsOnline,
	}, http.StatusOK)
}

// Statistics обрабатывает GET /api/v1/sync/statistics
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Statistics(r.Context())
	if err != nil {
		h.handleError(w, r, "get statistics", err)
		return
	}
	h.sendJSON(w, api.StatisticsResponse{
		LastSyncTime:   st.LastSyncTime,
		TotalPending:   st.TotalPending,
		TotalFailed:    st.TotalFailed,
		TotalConflicts: st.TotalConflicts,
		SyncInProgress: st.SyncInProgress,
	}, http.StatusOK)
}

// ForceSync обрабатывает POST /api/v1/sync/force
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ForceSync(r.Context())
	if err != nil {
		h.handleError(w, r, "force sync", err)
		return
	}

	status := http.StatusOK
	if res.InProgress {
		status = http.StatusAccepted
	}
	h.sendJSON(w, api.PassResponse{
		Processed:  res.Processed,
		Successful: res.Successful,
		Failed:     res.Failed,
		Conflicts:  res.Conflicts,
		InProgress: res.InProgress,
	}, status)
}

// RetryFailed обрабатывает POST /api/v1/sync/failed/retry
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.RetryFailedItems(r.Context())
	if err != nil {
		h.handleError(w, r, "retry failed items", err)
		return
	}
	h.sendJSON(w, api.CountResponse{Count: n}, http.StatusOK)
}

// ClearFailed обрабатывает POST /api/v1/sync/failed/clear
func (h *Handler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.ClearFailedItems(r.Context())
	if err != nil {
		h.handleError(w, r, "clear failed items", err)
		return
	}
	h.sendJSON(w, api.CountResponse{Count: n}, http.StatusOK)
}

// ClearLegacy обрабатывает DELETE /api/v1/sync/legacy/{table}
func (h *Handler) ClearLegacy(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if err := validation.ValidateTableName(table); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.engine.ClearLegacyItems(r.Context(), table)
	if err != nil {
		h.handleError(w, r, "clear legacy items", err)
		return
	}
	h.sendJSON(w, api.CountResponse{Count: n}, http.StatusOK)
}

// Conflicts обрабатывает GET /api/v1/sync/conflicts[?all=true]
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	var (
		list []*models.DataConflict
		err  error
	)
	if r.URL.Query().Get("all") == "true" {
		list, err = h.ledger.ListConflicts(r.Context())
	} else {
		list, err = h.ledger.ListPendingConflicts(r.Context())
	}
	if err != nil {
		h.handleError(w, r, "list conflicts", err)
		return
	}
	if list == nil {
		list = []*models.DataConflict{}
	}
	h.sendJSON(w, list, http.StatusOK)
}

// Resolve обрабатывает POST /api/v1/sync/conflicts/{id}/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req api.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		if claims, ok := authtoken.FromContext(ctx); ok {
			resolvedBy = claims.Subject
		}
	}
	if resolvedBy == "" {
		h.sendError(w, "resolved_by is required", http.StatusBadRequest)
		return
	}

	err := h.engine.ResolveConflict(ctx, id, models.Resolution(req.Resolution), resolvedBy, models.Record(req.Merged))
	if err != nil {
		h.handleError(w, r, "resolve conflict", err)
		return
	}

	h.logger.InfoContext(ctx, "Conflict resolved via admin API",
		slog.String("conflict_id", id),
		slog.String("resolution", req.Resolution),
		slog.String("resolved_by", resolvedBy))

	w.WriteHeader(http.StatusNoContent)
}

// ListDevices обрабатывает GET /api/v1/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.devices.ListDevices(r.Context())
	if err != nil {
		h.handleError(w, r, "list devices", err)
		return
	}
	if list == nil {
		list = []*models.DeviceInfo{}
	}
	h.sendJSON(w, list, http.StatusOK)
}

// RegisterDevice обрабатывает POST /api/v1/devices
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req api.DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	deviceType := models.DeviceType(req.DeviceType)
	switch deviceType {
	case models.DeviceTypeTerminal, models.DeviceTypeKitchen, models.DeviceTypeManager, models.DeviceTypeKiosk:
	case "":
		deviceType = models.DeviceTypeTerminal
	default:
		h.sendError(w, "unknown device_type", http.StatusBadRequest)
		return
	}

	device := &models.DeviceInfo{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		DeviceType: deviceType,
		UserID:     req.UserID,
		IPAddress:  req.IPAddress,
		Addresses:  req.Addresses,
		LastSeen:   h.now().UTC(),
		IsOnline:   true,
	}
	if device.DeviceName == "" {
		device.DeviceName = req.DeviceID
	}

	if err := h.devices.RegisterDevice(r.Context(), device); err != nil {
		h.handleError(w, r, "register device", err)
		return
	}
	h.sendJSON(w, device, http.StatusCreated)
}

// Records обрабатывает POST /api/v1/records/{table}: операция доменного слоя
// проходит через роутер
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	actor := ""
	if claims, ok := authtoken.FromContext(ctx); ok {
		actor = claims.Subject
	}

	res := h.router.Handle(ctx, router.Request{
		Payload:   models.Record(req.Payload),
		Operation: router.Operation(req.Operation),
		Table:     r.PathValue("table"),
		RecordID:  req.RecordID,
		ActorID:   actor,
	})

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	h.sendJSON(w, api.OperationResponse{
		Data:        res.Data,
		SyncStatus:  string(res.SyncStatus),
		Error:       res.Error,
		QueueItemID: res.QueueItemID,
		Success:     res.Success,
	}, status)
}

// handleError сопоставляет ошибки engine и хранилища HTTP статусам
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrConflictNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrConflictResolved), errors.Is(err, store.ErrTableInUse):
		h.sendError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, syncengine.ErrInvalidResolution):
		h.sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, remote.ErrOffline), errors.Is(err, store.ErrNotReady):
		h.sendError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, syncengine.ErrCloudRequest):
		h.logger.WarnContext(r.Context(), "Cloud call failed", slog.String("op", op), slog.Any("error", err))
		h.sendError(w, "cloud unavailable: "+err.Error(), http.StatusBadGateway)
	default:
		h.logger.ErrorContext(r.Context(), "Admin operation failed", slog.String("op", op), slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON отправляет JSON ответ
func (h *Handler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *Handler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
