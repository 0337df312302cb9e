package service

import (
	"context"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSignInIsAdmin(t *testing.T) {
	svc := NewUserService(storetest.New())
	ctx := context.Background()

	first, err := svc.SignIn(ctx, SignInProfile{Email: "Owner@Example.com", Name: "Owner"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, "owner@example.com", first.Email)

	second, err := svc.SignIn(ctx, SignInProfile{Email: "client@example.com", Name: "Client"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, second.Role)

	again, err := svc.SignIn(ctx, SignInProfile{Email: "owner@example.com", Name: "Owner Renamed", Image: "https://img/p.png"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.RoleAdmin, again.Role)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner Renamed", got.Name)
}

func TestSignInRequiresEmail(t *testing.T) {
	svc := NewUserService(storetest.New())

	_, err := svc.SignIn(context.Background(), SignInProfile{Name: "Nobody"})
	assert.Equal(t, []string{"email"}, fieldsOf(t, err))

	_, err = svc.Get(context.Background(), 9)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDashboardSummary(t *testing.T) {
	st := storetest.New()
	orders, _, _ := newOrderFixtureWith(st)
	catalog := NewCatalogService(st)
	id := seedProduct(t, st, "Serum", "20", true)
	seedProduct(t, st, "Tónico", "30", true)

	_, err := orders.CreateOrder(context.Background(), validOrderRequest(OrderItemRequest{ProductID: id, Quantity: 1}))
	require.NoError(t, err)

	sum, err := Dashboard(context.Background(), orders, catalog)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalOrders)
	assert.Equal(t, 2, sum.ProductCount)
	assert.Equal(t, 1, sum.OrdersByStatus[models.OrderStatusPending])
	assert.Len(t, sum.OrdersByStatus, 3)
}
