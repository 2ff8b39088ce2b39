package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
	"github.com/iudanet/possync/internal/store"
)

var (
	// ErrRetriesExhausted is recorded as the error message of an item that reached failed
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInvalidResolution indicates a resolution other than local_wins, cloud_wins or manual_merge
	ErrInvalidResolution = errors.New("invalid resolution")

	// ErrCloudRequest wraps a failed cloud call made on behalf of an operator action
	ErrCloudRequest = errors.New("cloud request failed")
)

// Config параметры sync engine
type Config struct {
	DeviceID      string        // DeviceID строка реестра устройств, в которую пишется результат прохода
	Interval      time.Duration // Interval период проходов
	StartupDelay  time.Duration // StartupDelay задержка первого прохода после Start
	RetryDelay    time.Duration // RetryDelay базовая задержка повторной попытки
	RemoteTimeout time.Duration // RemoteTimeout ограничение одного вызова облака
	MaxRetries    int           // MaxRetries число неудачных попыток до статуса failed
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Interval:      30 * time.Second,
		StartupDelay:  2 * time.Second,
		RetryDelay:    5 * time.Second,
		RemoteTimeout: 10 * time.Second,
		MaxRetries:    3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = def.StartupDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = def.RemoteTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	return c
}

// Connectivity то, что engine знает о сети
type Connectivity interface {
	IsOnline() bool
	State() models.NetworkState
}

// Engine дренирует очередь синхронизации в облако.
// Проходы не пересекаются, элементы внутри прохода обрабатываются последовательно.
type Engine struct {
	store   store.Storage
	backend remote.Backend
	conn    Connectivity
	logger  *slog.Logger
	now     func() time.Time

	observersMu sync.RWMutex
	observers   []Observer

	// lifecycle
	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup

	cfg     Config
	running atomic.Bool
}

// Option настраивает Engine
type Option func(*Engine)

// WithClock заменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New создает engine
func New(st store.Storage, backend remote.Backend, conn Connectivity, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:   st,
		backend: backend,
		conn:    conn,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "sync_engine"),
		now:     time.Now,
		timers:  make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddObserver подписывает наблюдателя на события engine
func (e *Engine) AddObserver(o Observer) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, o)
}

// Start запускает периодические проходы. Первый проход выполняется через
// StartupDelay, далее каждые Interval, и только когда облако доступно.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.baseCtx = ctx
	e.cancel = cancel

	e.wg.Add(1)
	go e.loop(ctx)

	e.logger.Info("Sync engine started",
		"interval", e.cfg.Interval,
		"max_retries", e.cfg.MaxRetries)
}

// Stop останавливает цикл, отменяет отложенные повторы и ждет текущий проход
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.cancel = nil
	e.baseCtx = nil
	for t := range e.timers {
		t.Stop()
		delete(e.timers, t)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Sync engine stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	startup := time.NewTimer(e.cfg.StartupDelay)
	defer startup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-startup.C:
		e.tick(ctx)
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if !e.isOnline() {
		e.logger.Debug("Skipping sync pass, cloud is offline")
		return
	}
	if _, err := e.RunPass(ctx); err != nil {
		e.logger.Error("Sync pass failed", "error", err)
	}
}

// scheduleRetry ставит одноразовый дополнительный проход через RetryDelay*attempt.
// Вне Start повторы не планируются.
func (e *Engine) scheduleRetry(attempt int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.baseCtx == nil {
		return
	}
	ctx := e.baseCtx
	delay := e.cfg.RetryDelay * time.Duration(attempt)

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if _, ok := e.timers[t]; !ok {
			e.mu.Unlock()
			return
		}
		delete(e.timers, t)
		e.wg.Add(1)
		e.mu.Unlock()

		defer e.wg.Done()
		if ctx.Err() != nil {
			return
		}
		e.tick(ctx)
	})
	e.timers[t] = struct{}{}
}

func (e *Engine) pendingRetries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

func (e *Engine) isOnline() bool {
	return e.conn != nil && e.conn.IsOnline()
}

func (e *Engine) observersSnapshot() []Observer {
	e.observersMu.RLock()
	defer e.observersMu.RUnlock()
	out := make([]Observer, len(e.observers))
	copy(out, e.observers)
	return out
}
