package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderStore is the persistence the order service needs
type OrderStore interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
	GetOrderHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error)
}

// OrderEventPublisher publishes order lifecycle events
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	shipping       *ShippingResolver
	links          *ContactLinkBuilder
	eventPublisher OrderEventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service. eventPublisher may be nil.
func NewOrderService(
	store OrderStore,
	shipping *ShippingResolver,
	links *ContactLinkBuilder,
	eventPublisher OrderEventPublisher,
) *OrderService {
	return &OrderService{
		store:          store,
		shipping:       shipping,
		links:          links,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a checkout submission
type CreateOrderRequest struct {
	DNI              string             `json:"dni" validate:"required"`
	FullName         string             `json:"fullName" validate:"required"`
	Phone            string             `json:"phone" validate:"required"`
	Address          string             `json:"address" validate:"required"`
	Department       string             `json:"department" validate:"required"`
	Province         string             `json:"province" validate:"required"`
	ShippingZone     string             `json:"shippingZone" validate:"required"`
	ShippingModality string             `json:"shippingModality"`
	Items            []OrderItemRequest `json:"items" validate:"required,dive"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=999"`
}

// MaxItemQuantity caps the units of one product in an order
const MaxItemQuantity = 999

// order totals are stored as NUMERIC(12,2)
var maxOrderTotal = decimal.New(1, 10)

// CreateOrderResponse is returned after an order is persisted
type CreateOrderResponse struct {
	Order       *models.Order `json:"order"`
	ContactLink string        `json:"contactLink"`
}

// OrderList is a page of orders
type OrderList struct {
	Orders     []models.Order    `json:"orders"`
	Pagination models.Pagination `json:"pagination"`
}

// OrderDetail is an order with its items and status history
type OrderDetail struct {
	Order   *models.Order              `json:"order"`
	History []models.OrderStatusChange `json:"history"`
}

// mergeItems sums quantities of repeated products, keeping first-seen order.
// A merged line above MaxItemQuantity is rejected.
func mergeItems(items []OrderItemRequest) ([]OrderItemRequest, error) {
	merged := make([]OrderItemRequest, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			if merged[i].Quantity > MaxItemQuantity-it.Quantity {
				return nil, apperr.InvalidFields("quantity")
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// CreateOrder validates, prices and persists an order and returns its contact link
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateStruct(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, &apperr.Error{Kind: apperr.Validation, Message: "order must contain at least one item", Fields: []string{"items"}}
	}
	modality := req.ShippingModality
	if modality == "" {
		modality = ModalityDomicilio
	}

	rate, err := s.shipping.Lookup(req.ShippingZone, modality)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_shipping").Inc()
		return nil, err
	}

	items, err := mergeItems(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}
	products, err := s.validateOrderItems(ctx, items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	subtotal := decimal.Zero
	for _, it := range items {
		p := products[it.ProductID]
		oi := models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
		}
		subtotal = subtotal.Add(oi.LineTotal())
		orderItems = append(orderItems, oi)
	}
	total := subtotal.Add(rate.Cost)
	if total.GreaterThanOrEqual(maxOrderTotal) {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, &apperr.Error{Kind: apperr.Validation, Message: "order total too large", Fields: []string{"items"}}
	}

	order := &models.Order{
		DNI:              req.DNI,
		FullName:         req.FullName,
		Phone:            req.Phone,
		Address:          req.Address,
		Department:       req.Department,
		Province:         req.Province,
		ShippingZone:     req.ShippingZone,
		ShippingModality: modality,
		Subtotal:         subtotal,
		ShippingCost:     rate.Cost,
		Total:            total,
		Status:           models.OrderStatusPending,
	}

	if err := s.store.CreateOrder(ctx, order, orderItems); err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrReferenced) {
			util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
			return nil, apperr.Wrap(apperr.NotFound, err, "product not found")
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	order.Items = orderItems
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	util.OrdersCreatedTotal.Inc()
	util.OrderValueTotal.Add(order.Total.InexactFloat64())
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(orderItems)))

	s.publishCreated(ctx, order)

	return &CreateOrderResponse{
		Order:       order,
		ContactLink: s.links.Link(order),
	}, nil
}

// validateOrderItems checks every product exists and can be sold
func (s *OrderService) validateOrderItems(ctx context.Context, items []OrderItemRequest) (map[int64]*models.Product, error) {
	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	for _, it := range items {
		p, ok := productMap[it.ProductID]
		if !ok {
			return nil, apperr.New(apperr.NotFound, "product not found: %d", it.ProductID)
		}
		if !p.Available {
			return nil, apperr.New(apperr.Validation, "product not available: %d", it.ProductID)
		}
	}
	return productMap, nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	if s.eventPublisher == nil {
		return
	}

	data := make([]models.OrderItemData, 0, len(order.Items))
	for _, it := range order.Items {
		data = append(data, models.OrderItemData{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: order.CreatedAt,
		},
		OrderID:      order.ID,
		Status:       order.Status,
		ShippingZone: order.ShippingZone,
		Total:        order.Total,
		Items:        data,
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// ListOrders returns orders newest first, optionally filtered by status
func (s *OrderService) ListOrders(ctx context.Context, status string, page, limit int) (*OrderList, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	f := models.OrderFilter{Status: models.OrderStatus(status)}
	if status != "" && !f.Status.Valid() {
		return nil, apperr.New(apperr.Validation, "invalid status: %q", status)
	}
	f.Page, f.Limit = clampPage(page, limit, 20, 100)

	orders, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &OrderList{Orders: orders, Pagination: models.NewPagination(f.Page, f.Limit, total)}, nil
}

// CountByStatus returns the number of orders in every status, zeros included
func (s *OrderService) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	counts, err := s.store.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	out := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	for _, st := range models.OrderStatuses {
		out[st] = counts[st]
	}
	return out, nil
}

// GetOrder retrieves an order with its items and status history
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order.id", orderID))
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order not found: %d", orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	order.Items = items

	history, err := s.store.GetOrderHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	if history == nil {
		history = []models.OrderStatusChange{}
	}

	return &OrderDetail{Order: order, History: history}, nil
}

// UpdateStatus advances an order one step along PENDING → SHIPPED → DELIVERED
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus",
		attribute.Int64("order.id", orderID), attribute.String("order.status", string(to)))
	defer span.End()

	if !to.Valid() {
		return nil, apperr.InvalidFields("status")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order not found: %d", orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	from := order.Status
	if from.Next() != to {
		return nil, apperr.New(apperr.Conflict, "cannot change order status from %s to %s", from, to)
	}

	ok, err := s.store.UpdateOrderStatus(ctx, orderID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "order %d is no longer %s", orderID, from)
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if s.eventPublisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			From:    from,
			To:      to,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	updated, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return updated, nil
}
