package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, dni, full_name, phone, address, department, province, shipping_zone,
	shipping_modality, subtotal, shipping_cost, total, status, created_at, updated_at`

// CreateOrder inserts an order and all of its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return mapError(s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (dni, full_name, phone, address, department, province, shipping_zone,
				shipping_modality, subtotal, shipping_cost, total, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at`

		err := tx.GetContext(ctx, order, query,
			order.DNI, order.FullName, order.Phone, order.Address, order.Department, order.Province,
			order.ShippingZone, order.ShippingModality, order.Subtotal, order.ShippingCost, order.Total,
			order.Status)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			err := tx.GetContext(ctx, &items[i].ID, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].Quantity, items[i].UnitPrice)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	}))
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return items, err
}

// ListOrders returns one page of orders, newest first, and the total match count
func (s *Store) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = " WHERE status = $1"
		args = append(args, f.Status)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		orderColumns, where, f.Limit, (f.Page-1)*f.Limit)

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

type statusCount struct {
	Status models.OrderStatus `db:"status"`
	Count  int                `db:"count"`
}

// CountOrdersByStatus groups orders by status
func (s *Store) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	var rows []statusCount
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM orders GROUP BY status"); err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// UpdateOrderStatus moves an order from one status to another; it reports false when the
// order was no longer in the expected status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetOrderHistory returns the recorded status changes for an order, oldest first
func (s *Store) GetOrderHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error) {
	history := []models.OrderStatusChange{}
	err := s.db.SelectContext(ctx, &history, `
		SELECT order_id, status, changed_at FROM order_status_history
		WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	return history, err
}

// RecordOrderEvent stores a status change once per event; it reports false for an event that
// was already processed
func (s *Store) RecordOrderEvent(ctx context.Context, eventID, eventType string, change models.OrderStatusChange) (bool, error) {
	recorded := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
			eventID, eventType)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_status_history (order_id, status, changed_at) VALUES ($1, $2, $3)",
			change.OrderID, change.Status, change.ChangedAt)
		if err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, mapError(err)
	}
	return recorded, nil
}
