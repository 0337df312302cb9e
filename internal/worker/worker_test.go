package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store/storetest"
	"storefront/internal/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWorkerRecordsEachEventOnce(t *testing.T) {
	st := storetest.New()
	w := NewOrderHistoryWorker(nil, st)
	ctx := context.Background()

	created := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderCreated, Timestamp: time.Now()},
		OrderID:   7,
		Status:    models.OrderStatusPending,
	}
	require.NoError(t, w.handleOrderCreated(ctx, created))
	require.NoError(t, w.handleOrderCreated(ctx, created))

	changed := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderStatusChanged, Timestamp: time.Now()},
		OrderID:   7,
		From:      models.OrderStatusPending,
		To:        models.OrderStatusShipped,
	}
	require.NoError(t, w.handleOrderStatusChanged(ctx, changed))

	history, err := st.GetOrderHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderStatusPending, history[0].Status)
	assert.Equal(t, models.OrderStatusShipped, history[1].Status)
}

type fixedStats map[models.OrderStatus]int

func (f fixedStats) CountByStatus(context.Context) (map[models.OrderStatus]int, error) {
	return f, nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	return !l.held, l.err
}

func (l *fakeLocker) ReleaseLock(context.Context, string) error {
	l.released++
	return nil
}

func TestRefreshOrderGauge(t *testing.T) {
	s := NewScheduler(fixedStats{models.OrderStatusPending: 4, models.OrderStatusDelivered: 1}, nil)
	require.NoError(t, s.RefreshOrderGauge(context.Background()))

	assert.Equal(t, 4.0, testutil.ToFloat64(util.OrdersByStatus.WithLabelValues("PENDING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(util.OrdersByStatus.WithLabelValues("SHIPPED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(util.OrdersByStatus.WithLabelValues("DELIVERED")))
}

func TestRefreshOrderGaugeRespectsLock(t *testing.T) {
	lock := &fakeLocker{}
	s := NewScheduler(fixedStats{models.OrderStatusShipped: 9}, lock)
	require.NoError(t, s.RefreshOrderGauge(context.Background()))
	assert.Equal(t, 9.0, testutil.ToFloat64(util.OrdersByStatus.WithLabelValues("SHIPPED")))
	assert.Equal(t, 1, lock.released)

	lock.held = true
	s = NewScheduler(fixedStats{models.OrderStatusShipped: 2}, lock)
	require.NoError(t, s.RefreshOrderGauge(context.Background()))
	assert.Equal(t, 9.0, testutil.ToFloat64(util.OrdersByStatus.WithLabelValues("SHIPPED")))
	assert.Equal(t, 1, lock.released)

	lock.held, lock.err = false, errors.New("redis down")
	assert.Error(t, s.RefreshOrderGauge(context.Background()))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(fixedStats{}, nil)
	assert.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
