package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/possync/internal/models"
)

// Prober легкий запрос к облаку; remote.Backend удовлетворяет интерфейсу
type Prober interface {
	Probe(ctx context.Context) error
}

// Listener вызывается при смене состояния сети
type Listener func(prev, cur models.NetworkState)

// CheckFunc вызывается после каждой проверки, даже если состояние не изменилось
type CheckFunc func(state models.NetworkState)

// Config параметры монитора
type Config struct {
	Interval     time.Duration // Interval период проверки
	ProbeTimeout time.Duration // ProbeTimeout ограничение одного probe
}

// DefaultConfig returns the default monitor settings
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor поддерживает текущее представление о доступности облака.
// Единственный писатель NetworkState.
type Monitor struct {
	prober     Prober
	localCheck LocalCheck
	logger     *slog.Logger
	now        func() time.Time
	cancel     context.CancelFunc
	lastProbe  time.Time
	state      models.NetworkState
	addrs      []string
	listeners  []Listener
	checks     []CheckFunc
	cfg        Config
	wg         sync.WaitGroup
	evalMu     sync.Mutex // evalMu одна оценка за раз
	mu         sync.RWMutex
}

// Option настраивает Monitor
type Option func(*Monitor)

// WithLocalCheck заменяет проверку локальной сети
func WithLocalCheck(check LocalCheck) Option {
	return func(m *Monitor) {
		m.localCheck = check
	}
}

// WithClock заменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New создает монитор. До первой оценки состояние offline.
func New(prober Prober, cfg Config, logger *slog.Logger, opts ...Option) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		prober:     prober,
		cfg:        cfg,
		localCheck: InterfaceCheck,
		logger:     logger.With("component", "connectivity"),
		now:        time.Now,
		state:      models.NetworkState{Mode: models.NetworkModeOffline},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange подписывает listener на переходы состояния.
// Listener вызывается синхронно из оценивающей горутины.
func (m *Monitor) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// OnCheck подписывает fn на каждую выполненную проверку
func (m *Monitor) OnCheck(fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, fn)
}

// Start выполняет первую оценку и запускает периодическую проверку
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.evaluate(ctx, true)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evaluate(ctx, false)
			}
		}
	}()

	m.logger.Info("Connectivity monitor started", "interval", m.cfg.Interval)
}

// Stop останавливает периодическую проверку и ждет завершения горутины
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// IsOnline reports whether the cloud answered the latest probe
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.CloudAvailable
}

// State returns a copy of the current network state
func (m *Monitor) State() models.NetworkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Addresses returns the addresses found by the latest local network check
func (m *Monitor) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.addrs))
	copy(out, m.addrs)
	return out
}

// ForceCheck сбрасывает время последней проверки и оценивает состояние синхронно
func (m *Monitor) ForceCheck(ctx context.Context) models.NetworkState {
	return m.evaluate(ctx, true)
}

// evaluate probes the cloud if the period elapsed (or force is set)
// and publishes the new state. Probe errors only flip the flag.
func (m *Monitor) evaluate(ctx context.Context, force bool) models.NetworkState {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	now := m.now()

	m.mu.RLock()
	last := m.lastProbe
	prev := m.state
	m.mu.RUnlock()

	if !force && !last.IsZero() && now.Sub(last) < m.minGap() {
		return prev
	}

	cloud := m.probe(ctx)
	local, addrs := m.localCheck()

	cur := models.NetworkState{
		Mode:                  models.ModeFor(cloud, local),
		CloudAvailable:        cloud,
		LocalNetworkAvailable: local,
		LastCheck:             now,
	}

	m.mu.Lock()
	m.state = cur
	m.lastProbe = now
	m.addrs = addrs
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	checks := make([]CheckFunc, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	defer func() {
		for _, fn := range checks {
			fn(cur)
		}
	}()

	changed := prev.Mode != cur.Mode || prev.CloudAvailable != cur.CloudAvailable ||
		prev.LastCheck.IsZero()
	if !changed {
		m.logger.Debug("Network state unchanged", "mode", cur.Mode)
		return cur
	}

	m.logger.Info("Network state changed",
		"from", prev.Mode,
		"to", cur.Mode,
		"cloud", cur.CloudAvailable,
		"local", cur.LocalNetworkAvailable,
	)
	for _, l := range listeners {
		l(prev, cur)
	}

	return cur
}

// minGap допуск в десятую часть периода, чтобы тик таймера с небольшим
// опережением не пропускал проверку
func (m *Monitor) minGap() time.Duration {
	return m.cfg.Interval - m.cfg.Interval/10
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.prober == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	if err := m.prober.Probe(probeCtx); err != nil {
		m.logger.Debug("Cloud probe failed", "error", err)
		return false
	}
	return true
}
