package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultProductLimit = 12
	maxProductLimit     = 100
)

// ProductStore is the persistence the catalog service needs
type ProductStore interface {
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CountProducts(ctx context.Context) (int, error)
	CreateProduct(ctx context.Context, p *models.Product, tagIDs []int64) error
	UpdateProduct(ctx context.Context, p *models.Product, tagIDs []int64) error
	DeleteProduct(ctx context.Context, id int64) error
}

// CatalogService handles product listing and product administration
type CatalogService struct {
	store  ProductStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store ProductStore) *CatalogService {
	return &CatalogService{store: store, logger: util.GetLogger()}
}

// ProductQuery holds raw listing parameters
type ProductQuery struct {
	Search    string
	Tags      []string
	Available *bool
	Featured  *bool
	BrandID   *int64
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// ProductList is a page of products
type ProductList struct {
	Products   []models.Product  `json:"products"`
	Pagination models.Pagination `json:"pagination"`
}

// ProductRequest is the payload for creating a product
type ProductRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	SalePrice   *decimal.Decimal `json:"salePrice"`
	Images      []string         `json:"images" validate:"required,min=1,dive,required"`
	Available   *bool            `json:"available"`
	Featured    bool             `json:"featured"`
	BrandID     *int64           `json:"brandId"`
	TagIDs      []int64          `json:"tagIds"`
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	Price              *decimal.Decimal `json:"price"`
	SalePrice          *decimal.Decimal `json:"salePrice"`
	RemoveSalePrice    bool             `json:"removeSalePrice"`
	Images             []string         `json:"images"`
	Available          *bool            `json:"available"`
	Featured           *bool            `json:"featured"`
	BrandID            *int64           `json:"brandId"`
	RemoveBrand        bool             `json:"removeBrand"`
	TagIDs             []int64          `json:"tagIds"`
	ToggleAvailability bool             `json:"toggleAvailability"`
}

func checkPrices(price decimal.Decimal, sale decimal.NullDecimal) error {
	if !price.IsPositive() {
		return apperr.InvalidFields("price")
	}
	if sale.Valid && (!sale.Decimal.IsPositive() || sale.Decimal.GreaterThanOrEqual(price)) {
		return apperr.InvalidFields("salePrice")
	}
	return nil
}

func productStoreError(err error, id int64, action string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.NotFound, "product not found: %d", id)
	case errors.Is(err, store.ErrReferenced):
		return apperr.Wrap(apperr.NotFound, err, "brand or tag not found")
	}
	return fmt.Errorf("failed to %s product: %w", action, err)
}

// ListProducts returns a filtered, sorted page of the catalog
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*ProductList, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	f := models.ProductFilter{
		Search:    strings.TrimSpace(q.Search),
		Tags:      q.Tags,
		Available: q.Available,
		Featured:  q.Featured,
		BrandID:   q.BrandID,
		SortBy:    q.SortBy,
		SortDesc:  true,
	}

	switch f.SortBy {
	case "":
		f.SortBy = models.SortByCreatedAt
	case models.SortByPrice, models.SortByName, models.SortByCreatedAt:
	default:
		return nil, apperr.InvalidFields("sortBy")
	}

	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
	case "asc":
		f.SortDesc = false
	default:
		return nil, apperr.InvalidFields("sortOrder")
	}

	f.Page, f.Limit = clampPage(q.Page, q.Limit, defaultProductLimit, maxProductLimit)

	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	return &ProductList{Products: products, Pagination: models.NewPagination(f.Page, f.Limit, total)}, nil
}

// GetProduct retrieves a product with its tags and brand
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, productStoreError(err, id, "get")
	}
	return p, nil
}

// CountProducts returns the catalog size
func (s *CatalogService) CountProducts(ctx context.Context) (int, error) {
	n, err := s.store.CountProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// CreateProduct validates and stores a new product
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       *req.Price,
		Images:      req.Images,
		Available:   true,
		Featured:    req.Featured,
		BrandID:     req.BrandID,
	}
	if req.SalePrice != nil {
		p.SalePrice = decimal.NewNullDecimal(*req.SalePrice)
	}
	if req.Available != nil {
		p.Available = *req.Available
	}
	if err := checkPrices(p.Price, p.SalePrice); err != nil {
		return nil, err
	}

	tagIDs := req.TagIDs
	if tagIDs == nil {
		tagIDs = []int64{}
	}
	if err := s.store.CreateProduct(ctx, p, tagIDs); err != nil {
		util.RecordError(span, err)
		return nil, productStoreError(err, 0, "create")
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return s.GetProduct(ctx, p.ID)
}

// UpdateProduct applies a partial update
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, patch *ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct", attribute.Int64("product.id", id))
	defer span.End()

	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, productStoreError(err, id, "get")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.InvalidFields("name")
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.RemoveSalePrice {
		p.SalePrice = decimal.NullDecimal{}
	}
	if patch.SalePrice != nil {
		p.SalePrice = decimal.NewNullDecimal(*patch.SalePrice)
	}
	if patch.Images != nil {
		if len(patch.Images) == 0 {
			return nil, apperr.InvalidFields("images")
		}
		p.Images = patch.Images
	}
	if patch.Available != nil {
		p.Available = *patch.Available
	}
	if patch.ToggleAvailability {
		p.Available = !p.Available
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	if patch.RemoveBrand {
		p.BrandID = nil
	}
	if patch.BrandID != nil {
		p.BrandID = patch.BrandID
	}
	if err := checkPrices(p.Price, p.SalePrice); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProduct(ctx, p, patch.TagIDs); err != nil {
		util.RecordError(span, err)
		return nil, productStoreError(err, id, "update")
	}

	s.logger.Info("Product updated", zap.Int64("product_id", id), zap.Bool("available", p.Available))
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product that no order references
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	err := s.store.DeleteProduct(ctx, id)
	switch {
	case err == nil:
		s.logger.Info("Product deleted", zap.Int64("product_id", id))
		return nil
	case errors.Is(err, store.ErrReferenced):
		return apperr.New(apperr.Conflict, "product %d is referenced by existing orders", id)
	}
	return productStoreError(err, id, "delete")
}
