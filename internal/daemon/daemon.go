// Package daemon собирает компоненты терминала в один процесс:
// локальное хранилище, монитор сети, маршрутизатор операций, sync engine
// и административный API.
package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/iudanet/possync/internal/admin"
	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/connectivity"
	"github.com/iudanet/possync/internal/credentials"
	"github.com/iudanet/possync/internal/events"
	"github.com/iudanet/possync/internal/metrics"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/remote/httpapi"
	"github.com/iudanet/possync/internal/remote/pgremote"
	"github.com/iudanet/possync/internal/router"
	"github.com/iudanet/possync/internal/store/sqlite"
	"github.com/iudanet/possync/internal/syncengine"
	"github.com/iudanet/possync/internal/terminalcli"
)

// ErrNoCredentials терминал не зарегистрирован и облако недоступно для входа
var ErrNoCredentials = errors.New("no stored credentials, run 'register' or 'login' while the cloud is reachable")

// Options параметры запуска
type Options struct {
	Backend remote.Backend // Backend заменяет облачный backend из конфигурации
	Secret  string         // Secret секрет устройства для http backend
}

// App процесс терминала
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Storage
	backend remote.Backend
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	hub     *events.Hub
	metrics *metrics.Metrics
	server  *admin.Server
	closers []func()
}

// New открывает хранилище и облачный backend и связывает компоненты.
// Схема локальной БД применяется позже, в Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := sqlite.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close local store", "error", err)
		}
	})

	a.backend = opts.Backend
	if a.backend == nil {
		if a.backend, err = a.openBackend(ctx, opts.Secret); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.monitor = connectivity.New(a.backend, connectivity.Config{
		Interval:     cfg.Monitor.Interval,
		ProbeTimeout: cfg.Monitor.ProbeTimeout,
	}, logger)

	a.hub = events.NewHub(logger)
	a.metrics = metrics.New(st, logger)

	rt := router.New(st, a.backend, a.monitor, logger, router.WithTimeout(cfg.Remote.Timeout))

	a.engine = syncengine.New(st, a.backend, a.monitor, syncengine.Config{
		DeviceID:      cfg.Terminal.DeviceID,
		Interval:      cfg.Sync.Interval,
		StartupDelay:  cfg.Sync.StartupDelay,
		RetryDelay:    cfg.Sync.RetryDelay,
		RemoteTimeout: cfg.Remote.Timeout,
		MaxRetries:    cfg.Sync.MaxRetries,
	}, logger)
	a.engine.AddObserver(a.hub)
	a.engine.AddObserver(a.metrics)

	a.monitor.OnChange(a.hub.NetworkChanged)
	a.monitor.OnChange(a.metrics.NetworkChanged)
	a.monitor.OnCheck(func(state models.NetworkState) {
		a.heartbeat(context.Background(), state)
	})

	adminCfg := cfg.Admin
	if adminCfg.JWTSecret == "" {
		adminCfg.JWTSecret = randomSecret()
		logger.Warn("admin.jwt_secret is not set, operator commands are disabled until restart with a configured secret")
	}

	h := admin.NewHandler(logger, a.engine, rt, st, st, a.monitor, st)
	a.server = admin.NewServer(h, admin.Options{
		Events:     a.hub,
		Metrics:    a.metrics.Handler(),
		Listen:     cfg.Admin.Listen,
		JWT:        terminalcli.JWTConfig(adminCfg),
		RateWindow: cfg.Admin.RateWindow,
		RateLimit:  cfg.Admin.RateLimit,
	}, logger)

	return a, nil
}

func (a *App) openBackend(ctx context.Context, secret string) (remote.Backend, error) {
	cfg := a.cfg.Remote

	switch cfg.Kind {
	case config.RemotePostgres:
		b, err := pgremote.New(ctx, pgremote.Config{DSN: cfg.DSN, Schema: cfg.Schema}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to cloud database: %w", err)
		}
		a.closers = append(a.closers, b.Close)

		sctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := b.EnsureSchema(sctx); err != nil {
			// облако может быть недоступно при старте, схему создаст следующий запуск
			a.logger.Warn("Failed to ensure cloud schema", "error", err)
		}
		return b, nil

	default:
		session, err := a.unlock(ctx, secret)
		if err != nil {
			return nil, err
		}
		return httpapi.NewClient(cfg.URL,
			httpapi.WithTokenSource(session),
			httpapi.WithTimeout(cfg.Timeout)), nil
	}
}

// unlock открывает сохраненные учетные данные без обращения к облаку.
// Если их нет, выполняется вход.
func (a *App) unlock(ctx context.Context, secret string) (*credentials.Session, error) {
	ks, err := credentials.OpenKeystore(a.cfg.Keystore.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := ks.Close(); err != nil {
			a.logger.Error("Failed to close keystore", "error", err)
		}
	})

	authAPI := httpapi.NewClient(a.cfg.Remote.URL, httpapi.WithTimeout(a.cfg.Remote.Timeout))
	svc := credentials.NewService(authAPI, ks, a.cfg.Remote.URL, a.logger)

	session, err := svc.Unlock(ctx, secret)
	if errors.Is(err, credentials.ErrNotFound) {
		a.logger.Info("No stored credentials, logging in", "device_id", a.cfg.Terminal.DeviceID)
		session, err = svc.Login(ctx, a.cfg.Terminal.DeviceID, secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCredentials, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unlock credentials: %w", err)
	}

	if session.DeviceID() != a.cfg.Terminal.DeviceID {
		a.logger.Warn("Stored credentials belong to another device",
			"stored", session.DeviceID(),
			"configured", a.cfg.Terminal.DeviceID)
	}
	return session, nil
}

// Run обслуживает терминал до отмены ctx
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Admin.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Admin.Listen, err)
	}
	return a.Serve(ctx, ln)
}

// Serve как Run, но на готовом listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// API поднимается до инициализации схемы, health отвечает starting
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Serve(ctx, ln)
	}()
	go a.hub.Run(ctx)

	if err := a.store.Init(ctx); err != nil {
		cancel()
		<-serverErr
		return fmt.Errorf("failed to initialize local store: %w", err)
	}

	a.monitor.Start(ctx)
	a.engine.Start(ctx)
	a.logger.Info("Terminal started",
		"device_id", a.cfg.Terminal.DeviceID,
		"remote", a.cfg.Remote.Kind,
		"network_mode", a.monitor.State().Mode)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = <-serverErr
	case runErr = <-serverErr:
		cancel()
	}

	a.engine.Stop()
	a.monitor.Stop()
	a.logger.Info("Terminal stopped")
	return runErr
}

// Close освобождает хранилище, keystore и пул облачной БД
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// heartbeat обновляет запись терминала в реестре устройств
func (a *App) heartbeat(ctx context.Context, state models.NetworkState) {
	if !a.store.IsReady() {
		return
	}

	addrs := a.monitor.Addresses()
	dev := &models.DeviceInfo{
		DeviceID:   a.cfg.Terminal.DeviceID,
		DeviceName: a.cfg.Terminal.Name,
		DeviceType: a.cfg.Terminal.Type,
		UserID:     a.cfg.Terminal.UserID,
		LastSeen:   time.Now().UTC(),
		Addresses:  addrs,
		IsOnline:   state.CloudAvailable,
	}
	if len(addrs) > 0 {
		dev.IPAddress = addrs[0]
	}
	if err := a.store.RegisterDevice(ctx, dev); err != nil {
		a.logger.Warn("Failed to update device registry", "error", err)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
