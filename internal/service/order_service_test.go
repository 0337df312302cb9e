package service

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"sync"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	changed []*models.OrderStatusChangedEvent
	err     error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return p.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedProduct(t *testing.T, st *storetest.Store, name, price string, available bool) int64 {
	t.Helper()
	p := &models.Product{Name: name, Price: dec(price), Images: []string{"https://img.example.com/" + name + ".jpg"}, Available: available}
	require.NoError(t, st.CreateProduct(context.Background(), p, nil))
	return p.ID
}

func newOrderFixture() (*OrderService, *storetest.Store, *recordingPublisher) {
	st := storetest.New()
	pub := &recordingPublisher{}
	shipping := NewShippingResolver()
	links := NewContactLinkBuilder("Glow Store", "+51999999999", shipping)
	return NewOrderService(st, shipping, links, pub), st, pub
}

func validOrderRequest(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{
		DNI:              "12345678",
		FullName:         "Ana Torres",
		Phone:            "999888777",
		Address:          "Av. Larco 123",
		Department:       "Lima",
		Province:         "Lima",
		ShippingZone:     ZoneCosta,
		ShippingModality: ModalityDomicilio,
		Items:            items,
	}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T", err)
	return ae.Fields
}

func TestCreateOrderComputesTotals(t *testing.T) {
	svc, st, pub := newOrderFixture()
	serum := seedProduct(t, st, "Serum", "25.50", true)
	cream := seedProduct(t, st, "Crema", "10", true)

	resp, err := svc.CreateOrder(context.Background(), validOrderRequest(
		OrderItemRequest{ProductID: serum, Quantity: 2},
		OrderItemRequest{ProductID: cream, Quantity: 1},
	))
	require.NoError(t, err)

	order := resp.Order
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(dec("61.00")), order.Subtotal.String())
	assert.True(t, order.ShippingCost.Equal(dec("20")), order.ShippingCost.String())
	assert.True(t, order.Total.Equal(dec("81.00")), order.Total.String())
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("25.50")))
	assert.Equal(t, "Serum", order.Items[0].ProductName)

	assert.True(t, strings.HasPrefix(resp.ContactLink, "https://wa.me/51999999999?text="), resp.ContactLink)

	assert.Equal(t, 1, st.OrderCount())
	assert.Equal(t, 2, st.OrderItemCount())
	require.Len(t, pub.created, 1)
	assert.Equal(t, order.ID, pub.created[0].OrderID)
	assert.Equal(t, models.EventTypeOrderCreated, pub.created[0].EventType)
	assert.NotEmpty(t, pub.created[0].EventID)
}

func TestCreateOrderSubtotalIgnoresSalePrice(t *testing.T) {
	svc, st, _ := newOrderFixture()
	p := &models.Product{Name: "Tónico", Price: dec("40"), SalePrice: decimal.NewNullDecimal(dec("30")), Available: true}
	require.NoError(t, st.CreateProduct(context.Background(), p, nil))

	resp, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, resp.Order.Subtotal.Equal(dec("40")))
}

func TestCreateOrderMissingFields(t *testing.T) {
	svc, st, _ := newOrderFixture()

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.ElementsMatch(t,
		[]string{"dni", "fullName", "phone", "address", "department", "province", "shippingZone", "items"},
		fieldsOf(t, err))
	assert.Contains(t, err.Error(), "missing required fields")
	assert.Zero(t, st.OrderCount())
}

func TestCreateOrderEmptyItems(t *testing.T) {
	svc, st, pub := newOrderFixture()

	_, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{}))
	assert.True(t, apperr.Is(err, apperr.Validation))

	req := validOrderRequest()
	req.Items = []OrderItemRequest{}
	_, err = svc.CreateOrder(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, []string{"items"}, fieldsOf(t, err))

	assert.Zero(t, st.OrderCount())
	assert.Empty(t, pub.created)
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	svc, st, _ := newOrderFixture()
	hidden := seedProduct(t, st, "Agotado", "15", false)

	_, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: 999, Quantity: 1}))
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.EqualError(t, err, "product not found: 999")

	_, err = svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: hidden, Quantity: 1}))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "product not available")

	_, err = svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: hidden, Quantity: -2}))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, []string{"quantity"}, fieldsOf(t, err))

	assert.Zero(t, st.OrderCount())
}

func TestCreateOrderShippingValidation(t *testing.T) {
	svc, st, _ := newOrderFixture()
	id := seedProduct(t, st, "Serum", "20", true)

	req := validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1})
	req.ShippingZone = "LUNA"
	_, err := svc.CreateOrder(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "invalid shipping zone")

	req = validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1})
	req.ShippingModality = "DRON"
	_, err = svc.CreateOrder(context.Background(), req)
	assert.Contains(t, err.Error(), "invalid shipping modality")

	req = validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1})
	req.ShippingZone = ZoneLimaLocal
	req.ShippingModality = ""
	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ModalityDomicilio, resp.Order.ShippingModality)
	assert.True(t, resp.Order.ShippingCost.Equal(dec("10")))
	assert.Empty(t, req.ShippingModality)
}

func TestCreateOrderMergesRepeatedProducts(t *testing.T) {
	svc, st, _ := newOrderFixture()
	id := seedProduct(t, st, "Serum", "12.30", true)

	resp, err := svc.CreateOrder(context.Background(), validOrderRequest(
		OrderItemRequest{ProductID: id, Quantity: 1},
		OrderItemRequest{ProductID: id, Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, resp.Order.Items, 1)
	assert.Equal(t, 3, resp.Order.Items[0].Quantity)
	assert.True(t, resp.Order.Subtotal.Equal(dec("36.90")))
}

func TestCreateOrderBoundsQuantities(t *testing.T) {
	svc, st, pub := newOrderFixture()
	id := seedProduct(t, st, "Serum", "20", true)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 3_000_000_000}))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, []string{"quantity"}, fieldsOf(t, err))

	_, err = svc.CreateOrder(ctx, validOrderRequest(
		OrderItemRequest{ProductID: id, Quantity: math.MaxInt64},
		OrderItemRequest{ProductID: id, Quantity: 2},
	))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, []string{"quantity"}, fieldsOf(t, err))

	_, err = svc.CreateOrder(ctx, validOrderRequest(
		OrderItemRequest{ProductID: id, Quantity: 600},
		OrderItemRequest{ProductID: id, Quantity: 400},
	))
	assert.Equal(t, []string{"quantity"}, fieldsOf(t, err))

	resp, err := svc.CreateOrder(ctx, validOrderRequest(
		OrderItemRequest{ProductID: id, Quantity: 600},
		OrderItemRequest{ProductID: id, Quantity: 399},
	))
	require.NoError(t, err)
	assert.Equal(t, MaxItemQuantity, resp.Order.Items[0].Quantity)

	assert.Equal(t, 1, st.OrderCount())
	assert.Len(t, pub.created, 1)
}

func TestCreateOrderRejectsOversizedTotal(t *testing.T) {
	svc, st, _ := newOrderFixture()
	id := seedProduct(t, st, "Perfume", "99999999", true)

	_, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 101}))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, []string{"items"}, fieldsOf(t, err))
	assert.Zero(t, st.OrderCount())
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	svc, st, pub := newOrderFixture()
	a := seedProduct(t, st, "A", "10", true)
	b := seedProduct(t, st, "B", "20", true)
	st.FailCreateOrder = errors.New("connection reset")

	_, err := svc.CreateOrder(context.Background(), validOrderRequest(
		OrderItemRequest{ProductID: a, Quantity: 1},
		OrderItemRequest{ProductID: b, Quantity: 1},
	))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Internal))
	assert.Zero(t, st.OrderCount())
	assert.Zero(t, st.OrderItemCount())
	assert.Empty(t, pub.created)
}

func TestCreateOrderSurvivesPublishFailure(t *testing.T) {
	svc, st, pub := newOrderFixture()
	pub.err = errors.New("broker down")
	id := seedProduct(t, st, "Serum", "20", true)

	_, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, st.OrderCount())
}

func TestOrderKeepsPriceSnapshot(t *testing.T) {
	svc, st, _ := newOrderFixture()
	id := seedProduct(t, st, "Serum", "20", true)

	resp, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 2}))
	require.NoError(t, err)

	p, err := st.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	p.Price = dec("99")
	require.NoError(t, st.UpdateProduct(context.Background(), p, nil))

	detail, err := svc.GetOrder(context.Background(), resp.Order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Order.Items, 1)
	assert.True(t, detail.Order.Items[0].UnitPrice.Equal(dec("20")))
	assert.True(t, detail.Order.Total.Equal(resp.Order.Total))
	assert.NotNil(t, detail.History)
}

func TestUpdateStatusMovesForwardOnly(t *testing.T) {
	svc, st, pub := newOrderFixture()
	id := seedProduct(t, st, "Serum", "20", true)
	resp, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1}))
	require.NoError(t, err)
	orderID := resp.Order.ID
	ctx := context.Background()

	_, err = svc.UpdateStatus(ctx, orderID, models.OrderStatusDelivered)
	assert.True(t, apperr.Is(err, apperr.Conflict))

	o, err := svc.UpdateStatus(ctx, orderID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, o.Status)

	_, err = svc.UpdateStatus(ctx, orderID, models.OrderStatusPending)
	assert.True(t, apperr.Is(err, apperr.Conflict))

	o, err = svc.UpdateStatus(ctx, orderID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, o.Status)

	_, err = svc.UpdateStatus(ctx, orderID, models.OrderStatusDelivered)
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = svc.UpdateStatus(ctx, orderID, "CANCELLED")
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.UpdateStatus(ctx, 4242, models.OrderStatusShipped)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	require.Len(t, pub.changed, 2)
	assert.Equal(t, models.OrderStatusPending, pub.changed[0].From)
	assert.Equal(t, models.OrderStatusDelivered, pub.changed[1].To)
}

func TestCountByStatusIsZeroFilled(t *testing.T) {
	svc, st, _ := newOrderFixture()

	counts, err := svc.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.OrderStatus]int{
		models.OrderStatusPending:   0,
		models.OrderStatusShipped:   0,
		models.OrderStatusDelivered: 0,
	}, counts)

	id := seedProduct(t, st, "Serum", "20", true)
	_, err = svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1}))
	require.NoError(t, err)

	counts, err = svc.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.OrderStatusPending])
	assert.Equal(t, 0, counts[models.OrderStatusShipped])
}

func TestListOrders(t *testing.T) {
	svc, st, _ := newOrderFixture()
	id := seedProduct(t, st, "Serum", "20", true)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1}))
		require.NoError(t, err)
	}

	list, err := svc.ListOrders(context.Background(), "", 1, 2)
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)
	assert.Equal(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	assert.Greater(t, list.Orders[0].ID, list.Orders[1].ID)

	list, err = svc.ListOrders(context.Background(), "SHIPPED", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
	assert.Equal(t, 1, list.Pagination.Page)
	assert.Equal(t, 20, list.Pagination.Limit)

	_, err = svc.ListOrders(context.Background(), "LOST", 1, 10)
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestContactLinkIsDeterministic(t *testing.T) {
	shipping := NewShippingResolver()
	b := NewContactLinkBuilder("Glow Store", "51999999999", shipping)
	order := &models.Order{
		ID:               7,
		DNI:              "12345678",
		FullName:         "Ana Torres",
		Phone:            "999888777",
		Address:          "Av. Larco 123",
		Department:       "Lima",
		Province:         "Lima",
		ShippingZone:     ZoneLimaLocal,
		ShippingModality: ModalityAgencia,
		Subtotal:         dec("51"),
		ShippingCost:     dec("8"),
		Total:            dec("59"),
		Items: []models.OrderItem{
			{ProductName: "Serum", Quantity: 2, UnitPrice: dec("25.50")},
		},
	}

	link := b.Link(order)
	assert.Equal(t, link, b.Link(order))
	assert.NotContains(t, link, "+")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "wa.me", u.Host)
	msg := u.Query().Get("text")
	assert.Equal(t, b.Message(order), msg)

	assert.Contains(t, msg, "pedido #7")
	assert.Contains(t, msg, "- Serum x2: S/ 51.00")
	assert.Contains(t, msg, "Envío (Lima Metropolitana - Recojo en agencia): S/ 8.00")
	assert.Contains(t, msg, "Total: S/ 59.00")
	assert.Contains(t, msg, "DNI: 12345678")
}
