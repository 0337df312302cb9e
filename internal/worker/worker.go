package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// HistoryStore records order status changes once per event
type HistoryStore interface {
	RecordOrderEvent(ctx context.Context, eventID, eventType string, change models.OrderStatusChange) (bool, error)
}

// OrderHistoryWorker consumes order events and writes the status history
type OrderHistoryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        HistoryStore
	logger       *zap.Logger
}

// NewOrderHistoryWorker creates a new order history worker
func NewOrderHistoryWorker(consumer *broker.Consumer, store HistoryStore) *OrderHistoryWorker {
	w := &OrderHistoryWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderCreated(w.handleOrderCreated)
	w.eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)

	return w
}

func (w *OrderHistoryWorker) handleOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return w.record(ctx, e.BaseEvent, models.OrderStatusChange{
		OrderID:   e.OrderID,
		Status:    e.Status,
		ChangedAt: e.Timestamp,
	})
}

func (w *OrderHistoryWorker) handleOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	return w.record(ctx, e.BaseEvent, models.OrderStatusChange{
		OrderID:   e.OrderID,
		Status:    e.To,
		ChangedAt: e.Timestamp,
	})
}

func (w *OrderHistoryWorker) record(ctx context.Context, base models.BaseEvent, change models.OrderStatusChange) error {
	ctx, span := util.StartSpan(ctx, "OrderHistoryWorker.record")
	defer span.End()

	recorded, err := w.store.RecordOrderEvent(ctx, base.EventID, base.EventType, change)
	if err != nil {
		util.RecordError(span, err)
		util.OrderEventsRecordedTotal.WithLabelValues("error").Inc()
		return err
	}

	if !recorded {
		util.OrderEventsRecordedTotal.WithLabelValues("duplicate").Inc()
		w.logger.Info("Event already processed, skipping", zap.String("event_id", base.EventID))
		return nil
	}

	util.OrderEventsRecordedTotal.WithLabelValues("recorded").Inc()
	w.logger.Info("Order history recorded",
		zap.Int64("order_id", change.OrderID),
		zap.String("status", string(change.Status)))
	return nil
}

// Start consumes until ctx is cancelled
func (w *OrderHistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order history worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderHistoryWorker) Stop() error {
	w.logger.Info("Stopping order history worker")
	return w.consumer.Close()
}
