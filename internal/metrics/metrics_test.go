package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/store"
	"github.com/iudanet/possync/internal/syncengine"
)

type queueFunc func(ctx context.Context) (store.StatusCounts, error)

func (f queueFunc) CountByStatus(ctx context.Context) (store.StatusCounts, error) {
	return f(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMetrics_Observer(t *testing.T) {
	m := New(nil, testLogger())
	m.now = func() time.Time { return time.Unix(1_760_000_000, 0) }

	item := &models.SyncQueueItem{TableName: models.TableOrders}
	m.ItemProcessed(item, syncengine.OutcomeSynced)
	m.ItemProcessed(item, syncengine.OutcomeSynced)
	m.ItemProcessed(item, syncengine.OutcomeRetry)
	m.ConflictDetected(&models.DataConflict{TableName: models.TableOrders, ConflictType: models.ConflictTypeUpdate})

	m.PassCompleted(syncengine.PassResult{Processed: 2, Successful: 2}, 100*time.Millisecond)
	m.PassCompleted(syncengine.PassResult{Processed: 1, Conflicts: 1}, 50*time.Millisecond)
	m.PassCompleted(syncengine.PassResult{InProgress: true}, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues(models.TableOrders, "synced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues(models.TableOrders, "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues(models.TableOrders, "update_conflict")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("skipped")))

	// пропущенный проход не попадает в гистограмму
	var hist dto.Metric
	require.NoError(t, m.passDuration.Write(&hist))
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.15, hist.GetHistogram().GetSampleSum(), 1e-9)
	assert.Equal(t, 1_760_000_000.0, testutil.ToFloat64(m.lastPass))
}

func TestMetrics_NetworkMode(t *testing.T) {
	m := New(nil, testLogger())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.networkMode.WithLabelValues("offline")))

	m.NetworkChanged(models.NetworkState{}, models.NetworkState{Mode: models.NetworkModeHybrid})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.networkMode.WithLabelValues("offline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.networkMode.WithLabelValues("hybrid")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.networkMode.WithLabelValues("online")))
}

func TestMetrics_QueueCollector(t *testing.T) {
	queue := queueFunc(func(ctx context.Context) (store.StatusCounts, error) {
		return store.StatusCounts{
			models.SyncStatusPending: 4,
			models.SyncStatusFailed:  1,
		}, nil
	})
	c := newQueueCollector(queue, testLogger())

	expected := `
# HELP possync_queue_items Sync queue items by status.
# TYPE possync_queue_items gauge
possync_queue_items{status="conflict"} 0
possync_queue_items{status="failed"} 1
possync_queue_items{status="pending"} 4
possync_queue_items{status="synced"} 0
possync_queue_items{status="syncing"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	t.Run("serves registered metrics", func(t *testing.T) {
		m := New(queueFunc(func(ctx context.Context) (store.StatusCounts, error) {
			return store.StatusCounts{models.SyncStatusPending: 2}, nil
		}), testLogger())
		m.ItemProcessed(&models.SyncQueueItem{TableName: models.TableMenuItems}, syncengine.OutcomeFailed)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `possync_queue_items{status="pending"} 2`)
		assert.Contains(t, body, `possync_sync_items_total{outcome="failed",table="menu_items"} 1`)
		assert.Contains(t, body, "go_goroutines")
	})

	t.Run("store error fails scrape", func(t *testing.T) {
		m := New(queueFunc(func(ctx context.Context) (store.StatusCounts, error) {
			return nil, errors.New("database is closed")
		}), testLogger())

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
