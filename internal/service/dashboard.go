package service

import (
	"context"

	"storefront/internal/models"
)

// DashboardSummary is the admin landing page data
type DashboardSummary struct {
	OrdersByStatus map[models.OrderStatus]int `json:"ordersByStatus"`
	TotalOrders    int                        `json:"totalOrders"`
	ProductCount   int                        `json:"productCount"`
}

// Dashboard aggregates order and catalog counts
func Dashboard(ctx context.Context, orders *OrderService, catalog *CatalogService) (*DashboardSummary, error) {
	counts, err := orders.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	products, err := catalog.CountProducts(ctx)
	if err != nil {
		return nil, err
	}

	sum := &DashboardSummary{OrdersByStatus: counts, ProductCount: products}
	for _, n := range counts {
		sum.TotalOrders += n
	}
	return sum, nil
}
