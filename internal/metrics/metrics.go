// Package metrics экспортирует состояние синхронизации в формате Prometheus
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
	"github.com/iudanet/possync/internal/syncengine"
)

const namespace = "possync"

// QueueCounter источник глубины очереди; store.Storage удовлетворяет интерфейсу
type QueueCounter interface {
	CountByStatus(ctx context.Context) (store.StatusCounts, error)
}

// Metrics набор коллекторов терминала. Реализует syncengine.Observer.
type Metrics struct {
	registry     *prometheus.Registry
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	items        *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	networkMode  *prometheus.GaugeVec
	lastPass     prometheus.Gauge
	now          func() time.Time
}

// New регистрирует коллекторы в собственном registry.
// queue может быть nil, тогда глубина очереди не экспортируется.
func New(queue QueueCounter, logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by result (clean, degraded, skipped).",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of completed sync passes.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Queue items processed by outcome.",
		}, []string{"table", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "conflicts_detected_total",
			Help:      "Conflicts recorded in the ledger.",
		}, []string{"table", "type"}),
		networkMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "mode",
			Help:      "Current network mode, 1 for the active mode.",
		}, []string{"mode"}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last completed pass.",
		}),
	}

	m.registry.MustRegister(
		m.passes,
		m.passDuration,
		m.items,
		m.conflicts,
		m.networkMode,
		m.lastPass,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if queue != nil {
		m.registry.MustRegister(newQueueCollector(queue, logger))
	}

	m.setMode(models.NetworkModeOffline)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler обслуживает GET /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PassCompleted implements syncengine.Observer
func (m *Metrics) PassCompleted(res syncengine.PassResult, d time.Duration) {
	switch {
	case res.InProgress:
		m.passes.WithLabelValues("skipped").Inc()
		return
	case res.Failed > 0 || res.Conflicts > 0:
		m.passes.WithLabelValues("degraded").Inc()
	default:
		m.passes.WithLabelValues("clean").Inc()
	}
	m.passDuration.Observe(d.Seconds())
	m.lastPass.Set(float64(m.now().Unix()))
}

// ItemProcessed implements syncengine.Observer
func (m *Metrics) ItemProcessed(item *models.SyncQueueItem, outcome syncengine.Outcome) {
	m.items.WithLabelValues(item.TableName, string(outcome)).Inc()
}

// ConflictDetected implements syncengine.Observer
func (m *Metrics) ConflictDetected(c *models.DataConflict) {
	m.conflicts.WithLabelValues(c.TableName, string(c.ConflictType)).Inc()
}

// NetworkChanged подписывается на connectivity.Monitor через OnChange
func (m *Metrics) NetworkChanged(_, cur models.NetworkState) {
	m.setMode(cur.Mode)
}

func (m *Metrics) setMode(mode models.NetworkMode) {
	for _, candidate := range []models.NetworkMode{
		models.NetworkModeOnline,
		models.NetworkModeHybrid,
		models.NetworkModeOffline,
	} {
		v := 0.0
		if candidate == mode {
			v = 1
		}
		m.networkMode.WithLabelValues(string(candidate)).Set(v)
	}
}

// queueCollector читает глубину очереди при каждом scrape
type queueCollector struct {
	queue  QueueCounter
	logger *slog.Logger
	depth  *prometheus.Desc
}

func newQueueCollector(queue QueueCounter, logger *slog.Logger) *queueCollector {
	return &queueCollector{
		queue:  queue,
		logger: logger,
		depth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "items"),
			"Sync queue items by status.",
			[]string{"status"}, nil,
		),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := c.queue.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("Failed to collect queue depth", "error", err)
		ch <- prometheus.NewInvalidMetric(c.depth, err)
		return
	}

	for _, status := range []models.SyncStatus{
		models.SyncStatusPending,
		models.SyncStatusSyncing,
		models.SyncStatusSynced,
		models.SyncStatusFailed,
		models.SyncStatusConflict,
	} {
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
