// Package credentials регистрация терминала в облаке и выдача access token
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/crypto"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/validation"
	"github.com/iudanet/possync/pkg/api"
)

//go:generate moq -out authapi_mock.go . AuthAPI

// AuthAPI auth-эндпоинты облака; httpapi.Client удовлетворяет интерфейсу
type AuthAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	GetSalt(ctx context.Context, deviceID string) (*api.SaltResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
}

// ErrWrongSecret indicates that the secret does not open the stored tokens
var ErrWrongSecret = errors.New("device secret does not match stored credentials")

// refreshMargin токен обновляется заранее, чтобы не истечь посреди запроса
const refreshMargin = 30 * time.Second

// Service управляет учетными данными устройства
type Service struct {
	api      AuthAPI
	keystore *Keystore
	logger   *slog.Logger
	now      func() time.Time
	cloudURL string
	kdf      crypto.KDFParams
}

// Option настраивает Service
type Option func(*Service)

// WithKDF заменяет параметры Argon2id
func WithKDF(p crypto.KDFParams) Option {
	return func(s *Service) {
		s.kdf = p
	}
}

// WithClock заменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService создает сервис. cloudURL сохраняется рядом с токенами, чтобы
// не отправлять их другому облаку.
func NewService(authAPI AuthAPI, keystore *Keystore, cloudURL string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		api:      authAPI,
		keystore: keystore,
		logger:   logger,
		now:      time.Now,
		cloudURL: cloudURL,
		kdf:      crypto.DefaultKDF,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register регистрирует устройство и сразу выполняет вход
func (s *Service) Register(ctx context.Context, deviceID, secret string) (*Session, error) {
	if err := validation.ValidateDeviceID(deviceID); err != nil {
		return nil, fmt.Errorf("invalid device id: %w", err)
	}
	if err := validation.ValidateDeviceSecret(secret); err != nil {
		return nil, fmt.Errorf("invalid device secret: %w", err)
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	keys, err := crypto.DeriveDeviceKeys(secret, deviceID, salt, s.kdf)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}

	_, err = s.api.Register(ctx, api.RegisterRequest{
		DeviceID:    deviceID,
		AuthKeyHash: keys.AuthKeyHash(),
		PublicSalt:  salt,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	s.logger.Info("Device registered in cloud", "device_id", deviceID)

	return s.login(ctx, deviceID, salt, keys)
}

// Login получает соль из облака, выводит ключи и сохраняет новые токены
func (s *Service) Login(ctx context.Context, deviceID, secret string) (*Session, error) {
	if err := validation.ValidateDeviceID(deviceID); err != nil {
		return nil, fmt.Errorf("invalid device id: %w", err)
	}
	if secret == "" {
		return nil, errors.New("device secret cannot be empty")
	}

	saltResp, err := s.api.GetSalt(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get salt: %w", err)
	}
	keys, err := crypto.DeriveDeviceKeys(secret, deviceID, saltResp.PublicSalt, s.kdf)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}

	return s.login(ctx, deviceID, saltResp.PublicSalt, keys)
}

func (s *Service) login(ctx context.Context, deviceID, salt string, keys *crypto.DeviceKeys) (*Session, error) {
	resp, err := s.api.Login(ctx, api.LoginRequest{
		DeviceID:    deviceID,
		AuthKeyHash: keys.AuthKeyHash(),
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	sess := s.newSession(deviceID, salt, keys)
	if err := sess.store(ctx, resp); err != nil {
		return nil, err
	}
	s.logger.Info("Device logged in", "device_id", deviceID)
	return sess, nil
}

// Unlock открывает сохраненные токены без обращения к облаку. Терминал
// запускается офлайн, поэтому вход при старте не требуется.
func (s *Service) Unlock(ctx context.Context, secret string) (*Session, error) {
	st, err := s.keystore.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s.cloudURL != "" && st.CloudURL != "" && st.CloudURL != s.cloudURL {
		return nil, fmt.Errorf("stored credentials belong to %s, not %s", st.CloudURL, s.cloudURL)
	}

	keys, err := crypto.DeriveDeviceKeys(secret, st.DeviceID, st.PublicSalt, s.kdf)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keys: %w", err)
	}

	sess := s.newSession(st.DeviceID, st.PublicSalt, keys)
	access, err := crypto.Open(keys.StorageKey, st.AccessToken, sess.label("access"))
	if err != nil {
		return nil, ErrWrongSecret
	}
	refresh, err := crypto.Open(keys.StorageKey, st.RefreshToken, sess.label("refresh"))
	if err != nil {
		return nil, ErrWrongSecret
	}
	sess.setTokens(string(access), string(refresh))
	return sess, nil
}

// Logout удаляет сохраненные учетные данные
func (s *Service) Logout(ctx context.Context) error {
	if err := s.keystore.Delete(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// StoredDeviceID returns the device id of the stored credentials
func (s *Service) StoredDeviceID(ctx context.Context) (string, error) {
	st, err := s.keystore.Load(ctx)
	if err != nil {
		return "", err
	}
	return st.DeviceID, nil
}

func (s *Service) newSession(deviceID, salt string, keys *crypto.DeviceKeys) *Session {
	return &Session{
		svc:      s,
		deviceID: deviceID,
		salt:     salt,
		keys:     keys,
	}
}

// Session открытые учетные данные устройства. Реализует httpapi.TokenSource.
type Session struct {
	expiresAt time.Time
	svc       *Service
	keys      *crypto.DeviceKeys
	deviceID  string
	salt      string
	access    string
	refresh   string
	mu        sync.Mutex
}

// DeviceID returns the device the session belongs to
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Token возвращает действующий access token. Истекший токен обновляется
// через refresh token, а если облако его отвергло, выполняется повторный вход
// по auth key.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access != "" && s.svc.now().Add(refreshMargin).Before(s.expiresAt) {
		return s.access, nil
	}

	if s.refresh != "" {
		resp, err := s.svc.api.Refresh(ctx, s.refresh)
		if err == nil {
			if err := s.store(ctx, resp); err != nil {
				return "", err
			}
			return s.access, nil
		}
		if !errors.Is(err, remote.ErrUnauthorized) {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
		s.svc.logger.Warn("Refresh token rejected, logging in again", "device_id", s.deviceID)
	}

	resp, err := s.svc.api.Login(ctx, api.LoginRequest{
		DeviceID:    s.deviceID,
		AuthKeyHash: s.keys.AuthKeyHash(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to log in again: %w", err)
	}
	if err := s.store(ctx, resp); err != nil {
		return "", err
	}
	return s.access, nil
}

func (s *Session) label(kind string) string {
	return s.deviceID + "/" + kind
}

func (s *Session) setTokens(access, refresh string) {
	s.access = access
	s.refresh = refresh
	s.expiresAt = time.Time{}
	if exp, err := authtoken.ExpiresAt(access); err == nil {
		s.expiresAt = exp
	}
}

// store запечатывает и сохраняет новую пару токенов
func (s *Session) store(ctx context.Context, resp *api.TokenResponse) error {
	access, err := crypto.Seal(s.keys.StorageKey, []byte(resp.AccessToken), s.label("access"))
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := crypto.Seal(s.keys.StorageKey, []byte(resp.RefreshToken), s.label("refresh"))
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	err = s.svc.keystore.Save(ctx, &Stored{
		UpdatedAt:    s.svc.now().UTC(),
		AccessToken:  access,
		RefreshToken: refresh,
		DeviceID:     s.deviceID,
		PublicSalt:   s.salt,
		CloudURL:     s.svc.cloudURL,
	})
	if err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	s.setTokens(resp.AccessToken, resp.RefreshToken)
	if s.expiresAt.IsZero() && resp.ExpiresIn > 0 {
		s.expiresAt = s.svc.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return nil
}
