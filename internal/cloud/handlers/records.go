package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/validation"
	"github.com/iudanet/possync/pkg/api"
)

// RecordsHandler принимает мутации терминалов и отдает облачные записи
type RecordsHandler struct {
	logger  *slog.Logger
	records storage.RecordStorage
}

// NewRecordsHandler создает handler доменных таблиц
func NewRecordsHandler(logger *slog.Logger, records storage.RecordStorage) *RecordsHandler {
	return &RecordsHandler{
		logger:  logger,
		records: records,
	}
}

// Apply обрабатывает POST /api/v1/tables/{table}/apply.
// Конфликт отдается как 409 (duplicate) или 404 (not_found) с телом ConflictResponse.
func (h *RecordsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	table := r.PathValue("table")
	if err := validation.ValidateTableName(table); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode apply request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	deviceID := ""
	if claims, ok := authtoken.FromContext(ctx); ok {
		deviceID = claims.DeviceID
	}

	err := h.records.ApplyAs(ctx, deviceID, remote.ApplyRequest{
		Table:     table,
		Operation: models.OperationType(req.Operation),
		RecordID:  req.RecordID,
		Payload:   models.Record(req.Payload),
		Overwrite: req.Overwrite,
	})
	if err == nil {
		h.logger.DebugContext(ctx, "mutation applied",
			slog.String("table", table),
			slog.String("operation", req.Operation),
			slog.String("record_id", req.RecordID),
			slog.String("device_id", deviceID))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if ce, ok := remote.AsConflict(err); ok {
		status := http.StatusConflict
		if ce.Kind == remote.ConflictNotFound {
			status = http.StatusNotFound
		}
		h.logger.InfoContext(ctx, "mutation rejected",
			slog.String("table", table),
			slog.String("operation", req.Operation),
			slog.String("record_id", req.RecordID),
			slog.String("kind", string(ce.Kind)),
			slog.String("device_id", deviceID))
		sendJSON(h.logger, w, api.ConflictResponse{
			Kind:   string(ce.Kind),
			Error:  ce.Msg,
			Remote: ce.Remote,
		}, status)
		return
	}

	h.handleError(w, r, err)
}

// Get обрабатывает GET /api/v1/tables/{table}/records/{id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	id := r.PathValue("id")
	if err := validation.ValidateRecordID(id); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.records.Fetch(r.Context(), table, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	sendJSON(h.logger, w, api.RecordResponse{Record: rec}, http.StatusOK)
}

// List обрабатывает GET /api/v1/tables/{table}/records
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.List(r.Context(), r.PathValue("table"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := api.RecordsResponse{Records: make([]map[string]any, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, rec)
	}
	sendJSON(h.logger, w, resp, http.StatusOK)
}

func (h *RecordsHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		sendError(h.logger, w, "record not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrUnknownTable), errors.Is(err, storage.ErrInvalidMutation):
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.ErrorContext(r.Context(), "records request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}
