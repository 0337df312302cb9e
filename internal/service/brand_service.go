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

	"go.uber.org/zap"
)

// BrandStore is the persistence the brand service needs
type BrandStore interface {
	ListBrands(ctx context.Context, page, pageSize int) ([]models.Brand, int, error)
	GetBrand(ctx context.Context, id int64) (*models.Brand, error)
	CreateBrand(ctx context.Context, brand *models.Brand) error
	UpdateBrand(ctx context.Context, brand *models.Brand) error
	CountProductsByBrand(ctx context.Context, brandID int64) (int, error)
	DeleteBrand(ctx context.Context, id int64) error
}

// BrandRequest is the payload for creating or replacing a brand
type BrandRequest struct {
	Name string `json:"name" validate:"required"`
	Logo string `json:"logo"`
}

// BrandList is a page of brands
type BrandList struct {
	Brands     []models.Brand    `json:"brands"`
	Pagination models.Pagination `json:"pagination"`
}

// BrandService handles brand administration
type BrandService struct {
	store  BrandStore
	logger *zap.Logger
}

// NewBrandService creates a new brand service
func NewBrandService(store BrandStore) *BrandService {
	return &BrandService{store: store, logger: util.GetLogger()}
}

func brandStoreError(err error, id int64, name string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.NotFound, "brand not found: %d", id)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.New(apperr.Conflict, "brand already exists: %s", name)
	}
	return fmt.Errorf("brand store: %w", err)
}

// List returns brands by name with their product counts
func (s *BrandService) List(ctx context.Context, page, pageSize int) (*BrandList, error) {
	page, pageSize = clampPage(page, pageSize, 10, 100)

	brands, total, err := s.store.ListBrands(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	if brands == nil {
		brands = []models.Brand{}
	}
	return &BrandList{Brands: brands, Pagination: models.NewPagination(page, pageSize, total)}, nil
}

// Get retrieves a brand
func (s *BrandService) Get(ctx context.Context, id int64) (*models.Brand, error) {
	b, err := s.store.GetBrand(ctx, id)
	if err != nil {
		return nil, brandStoreError(err, id, "")
	}
	return b, nil
}

// Create stores a brand with a unique name
func (s *BrandService) Create(ctx context.Context, req *BrandRequest) (*models.Brand, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	b := &models.Brand{Name: strings.TrimSpace(req.Name), Logo: req.Logo}
	if err := s.store.CreateBrand(ctx, b); err != nil {
		return nil, brandStoreError(err, 0, b.Name)
	}

	s.logger.Info("Brand created", zap.Int64("brand_id", b.ID), zap.String("name", b.Name))
	return b, nil
}

// Update replaces a brand's name and logo
func (s *BrandService) Update(ctx context.Context, id int64, req *BrandRequest) (*models.Brand, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	b := &models.Brand{ID: id, Name: strings.TrimSpace(req.Name), Logo: req.Logo}
	if err := s.store.UpdateBrand(ctx, b); err != nil {
		return nil, brandStoreError(err, id, b.Name)
	}
	return s.Get(ctx, id)
}

// Delete removes a brand no product references
func (s *BrandService) Delete(ctx context.Context, id int64) error {
	n, err := s.store.CountProductsByBrand(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count brand products: %w", err)
	}
	if n > 0 {
		return apperr.New(apperr.Conflict, "cannot delete brand with %d associated products", n)
	}

	// a product may be assigned between the count and the delete
	err = s.store.DeleteBrand(ctx, id)
	if errors.Is(err, store.ErrReferenced) {
		return apperr.New(apperr.Conflict, "cannot delete brand with associated products")
	}
	if err != nil {
		return brandStoreError(err, id, "")
	}

	s.logger.Info("Brand deleted", zap.Int64("brand_id", id))
	return nil
}
