package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/models"
)

type fakeProber struct {
	err   error
	mu    sync.Mutex
	calls atomic.Int32
}

func (p *fakeProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakeProber) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProber) restore() { p.fail(nil) }

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noLocal() (bool, []string) { return false, nil }

func TestMonitor_InitialStateOffline(t *testing.T) {
	m := New(&fakeProber{}, Config{}, testLogger())

	assert.False(t, m.IsOnline())
	assert.Equal(t, models.NetworkModeOffline, m.State().Mode)
	assert.Equal(t, 30*time.Second, m.cfg.Interval)
	assert.Equal(t, 5*time.Second, m.cfg.ProbeTimeout)
}

func TestMonitor_ForceCheck(t *testing.T) {
	prober := &fakeProber{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(prober, Config{Interval: time.Minute}, testLogger(),
		WithClock(clock.Now), WithLocalCheck(noLocal))

	var transitions []models.NetworkState
	m.OnChange(func(prev, cur models.NetworkState) {
		transitions = append(transitions, cur)
	})

	state := m.ForceCheck(context.Background())
	assert.Equal(t, models.NetworkModeOnline, state.Mode)
	assert.True(t, m.IsOnline())
	require.Len(t, transitions, 1)

	// повторная проверка с тем же результатом не уведомляет
	m.ForceCheck(context.Background())
	assert.Len(t, transitions, 1)
	assert.Equal(t, int32(2), prober.calls.Load())

	prober.fail(errors.New("connection refused"))
	state = m.ForceCheck(context.Background())
	assert.Equal(t, models.NetworkModeOffline, state.Mode)
	assert.False(t, m.IsOnline())
	require.Len(t, transitions, 2)
}

func TestMonitor_PeriodGate(t *testing.T) {
	prober := &fakeProber{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(prober, Config{Interval: 30 * time.Second}, testLogger(),
		WithClock(clock.Now), WithLocalCheck(noLocal))
	ctx := context.Background()

	m.evaluate(ctx, false)
	assert.Equal(t, int32(1), prober.calls.Load())

	// период еще не прошел
	clock.Advance(10 * time.Second)
	m.evaluate(ctx, false)
	assert.Equal(t, int32(1), prober.calls.Load())

	clock.Advance(25 * time.Second)
	m.evaluate(ctx, false)
	assert.Equal(t, int32(2), prober.calls.Load())

	// ForceCheck игнорирует период
	m.ForceCheck(ctx)
	assert.Equal(t, int32(3), prober.calls.Load())
}

func TestMonitor_TickJitter(t *testing.T) {
	prober := &fakeProber{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(prober, Config{Interval: 30 * time.Second}, testLogger(),
		WithClock(clock.Now), WithLocalCheck(noLocal))
	ctx := context.Background()

	var checked []models.NetworkState
	m.OnCheck(func(state models.NetworkState) {
		checked = append(checked, state)
	})

	m.evaluate(ctx, false)

	// тик пришел чуть раньше периода
	clock.Advance(30*time.Second - 50*time.Millisecond)
	m.evaluate(ctx, false)
	assert.Equal(t, int32(2), prober.calls.Load())

	// но не на треть периода раньше
	clock.Advance(20 * time.Second)
	m.evaluate(ctx, false)
	assert.Equal(t, int32(2), prober.calls.Load())

	// OnCheck вызывается на каждой проверке, включая неизменное состояние
	require.Len(t, checked, 2)
	assert.Equal(t, models.NetworkModeOnline, checked[1].Mode)
}

func TestMonitor_HybridMode(t *testing.T) {
	prober := &fakeProber{}
	prober.fail(context.DeadlineExceeded)

	m := New(prober, Config{}, testLogger(), WithLocalCheck(func() (bool, []string) {
		return true, []string{"192.168.0.5"}
	}))

	state := m.ForceCheck(context.Background())
	assert.Equal(t, models.NetworkModeHybrid, state.Mode)
	assert.False(t, state.CloudAvailable)
	assert.True(t, state.LocalNetworkAvailable)
	assert.Equal(t, []string{"192.168.0.5"}, m.Addresses())

	prober.restore()
	state = m.ForceCheck(context.Background())
	assert.Equal(t, models.NetworkModeOnline, state.Mode)
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	slow := proberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	m := New(slow, Config{ProbeTimeout: 20 * time.Millisecond}, testLogger(), WithLocalCheck(noLocal))

	start := time.Now()
	state := m.ForceCheck(context.Background())
	assert.False(t, state.CloudAvailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMonitor_StartStop(t *testing.T) {
	prober := &fakeProber{}
	m := New(prober, Config{Interval: 10 * time.Millisecond}, testLogger(), WithLocalCheck(noLocal))

	m.Start(context.Background())
	assert.True(t, m.IsOnline())

	assert.Eventually(t, func() bool {
		return prober.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	calls := prober.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, prober.calls.Load())
}

func TestMonitor_NilProber(t *testing.T) {
	m := New(nil, Config{}, testLogger(), WithLocalCheck(noLocal))
	assert.Equal(t, models.NetworkModeOffline, m.ForceCheck(context.Background()).Mode)
}

type proberFunc func(ctx context.Context) error

func (f proberFunc) Probe(ctx context.Context) error { return f(ctx) }
