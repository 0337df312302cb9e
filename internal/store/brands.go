package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

const brandColumns = `b.id, b.name, b.logo, b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM products p WHERE p.brand_id = b.id) AS product_count`

// ListBrands returns one page of brands ordered by name and the total brand count
func (s *Store) ListBrands(ctx context.Context, page, pageSize int) ([]models.Brand, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM brands"); err != nil {
		return nil, 0, fmt.Errorf("failed to count brands: %w", err)
	}

	brands := []models.Brand{}
	err := s.db.SelectContext(ctx, &brands,
		"SELECT "+brandColumns+" FROM brands b ORDER BY b.name LIMIT $1 OFFSET $2",
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list brands: %w", err)
	}
	return brands, total, nil
}

// GetBrand retrieves a brand with its product count
func (s *Store) GetBrand(ctx context.Context, id int64) (*models.Brand, error) {
	var brand models.Brand
	err := s.db.GetContext(ctx, &brand, "SELECT "+brandColumns+" FROM brands b WHERE b.id = $1", id)
	if err != nil {
		return nil, mapError(err)
	}
	return &brand, nil
}

// CreateBrand inserts a brand; names are unique
func (s *Store) CreateBrand(ctx context.Context, brand *models.Brand) error {
	err := s.db.GetContext(ctx, brand,
		"INSERT INTO brands (name, logo) VALUES ($1, $2) RETURNING id, created_at, updated_at",
		brand.Name, brand.Logo)
	return mapError(err)
}

// UpdateBrand replaces a brand's name and logo
func (s *Store) UpdateBrand(ctx context.Context, brand *models.Brand) error {
	err := s.db.GetContext(ctx, brand, `
		UPDATE brands SET name = $1, logo = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING created_at, updated_at`,
		brand.Name, brand.Logo, brand.ID)
	return mapError(err)
}

// CountProductsByBrand returns how many products reference the brand
func (s *Store) CountProductsByBrand(ctx context.Context, brandID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products WHERE brand_id = $1", brandID)
	return n, err
}

// DeleteBrand removes a brand; the products foreign key rejects it while products reference it
func (s *Store) DeleteBrand(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM brands WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
