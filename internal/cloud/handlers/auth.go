package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/crypto"
	"github.com/iudanet/possync/internal/validation"
	"github.com/iudanet/possync/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации терминалов
type AuthHandler struct {
	logger   *slog.Logger
	accounts storage.AccountStorage
	tokens   storage.TokenStorage
	now      func() time.Time
	jwt      authtoken.Config
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, accounts storage.AccountStorage, tokens storage.TokenStorage, jwt authtoken.Config) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		accounts: accounts,
		tokens:   tokens,
		jwt:      jwt,
		now:      time.Now,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		h.logger.WarnContext(ctx, "invalid device id", slog.String("device_id", req.DeviceID), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AuthKeyHash == "" {
		sendError(h.logger, w, "auth_key_hash is required", http.StatusBadRequest)
		return
	}
	if req.PublicSalt == "" {
		sendError(h.logger, w, "public_salt is required", http.StatusBadRequest)
		return
	}

	account := &storage.Account{
		DeviceID:    req.DeviceID,
		AuthKeyHash: req.AuthKeyHash,
		PublicSalt:  req.PublicSalt,
		CreatedAt:   h.now(),
	}

	if err := h.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			h.logger.WarnContext(ctx, "device already registered", slog.String("device_id", req.DeviceID))
			sendError(h.logger, w, "device already registered", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create device account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "device registered", slog.String("device_id", req.DeviceID))

	sendJSON(h.logger, w, api.RegisterResponse{
		DeviceID: req.DeviceID,
		Message:  "Device registered successfully",
	}, http.StatusCreated)
}

// GetSalt обрабатывает GET /api/v1/auth/salt/{device_id}
func (h *AuthHandler) GetSalt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID := r.PathValue("device_id")
	if err := validation.ValidateDeviceID(deviceID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetAccount(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			h.logger.WarnContext(ctx, "device not found", slog.String("device_id", deviceID))
			sendError(h.logger, w, "device not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, api.SaltResponse{PublicSalt: account.PublicSalt}, http.StatusOK)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AuthKeyHash == "" {
		sendError(h.logger, w, "auth_key_hash is required", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetAccount(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			h.logger.WarnContext(ctx, "login failed: device not found", slog.String("device_id", req.DeviceID))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.CompareAuthKeyHash(req.AuthKeyHash, account.AuthKeyHash); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid auth key", slog.String("device_id", req.DeviceID))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	resp, err := h.issueTokens(r, account.DeviceID)
	if err != nil {
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.accounts.UpdateLastLogin(ctx, account.DeviceID, h.now()); err != nil {
		// не критично
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "device logged in", slog.String("device_id", account.DeviceID))
	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/refresh.
// Refresh token передается в заголовке Authorization и после обмена удаляется.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refreshToken, ok := bearerToken(r)
	if !ok {
		sendError(h.logger, w, "refresh token is required", http.StatusUnauthorized)
		return
	}

	stored, err := h.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "refresh token not found")
			sendError(h.logger, w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get refresh token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if h.now().After(stored.ExpiresAt) {
		h.logger.WarnContext(ctx, "refresh token expired", slog.String("device_id", stored.DeviceID))
		sendError(h.logger, w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	if _, err := h.accounts.GetAccount(ctx, stored.DeviceID); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			sendError(h.logger, w, "device not found", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device account", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
		h.logger.WarnContext(ctx, "failed to delete old refresh token", slog.Any("error", err))
	}

	resp, err := h.issueTokens(r, stored.DeviceID)
	if err != nil {
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "tokens refreshed", slog.String("device_id", stored.DeviceID))
	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout: удаляет все refresh токены устройства
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := authtoken.FromContext(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	n, err := h.tokens.DeleteDeviceTokens(ctx, claims.DeviceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete device tokens", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "device logged out",
		slog.String("device_id", claims.DeviceID),
		slog.Int("tokens_deleted", n))

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueTokens(r *http.Request, deviceID string) (*api.TokenResponse, error) {
	ctx := r.Context()

	access, expiresIn, err := authtoken.GenerateAccessToken(h.jwt, deviceID, deviceID, authtoken.RoleDevice)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		return nil, err
	}

	refresh, expiresAt, err := authtoken.GenerateRefreshToken(h.jwt)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate refresh token", slog.Any("error", err))
		return nil, err
	}

	err = h.tokens.SaveRefreshToken(ctx, &storage.RefreshToken{
		Token:     refresh,
		DeviceID:  deviceID,
		ExpiresAt: expiresAt,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save refresh token", slog.Any("error", err))
		return nil, err
	}

	return &api.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
