package store

import (
	"context"

	"storefront/internal/models"
)

const imageColumns = "id, product_id, url, storage_key, format, width, height, bytes, created_at"

// CreateImage persists metadata of an uploaded image
func (s *Store) CreateImage(ctx context.Context, img *models.Image) error {
	err := s.db.GetContext(ctx, img, `
		INSERT INTO images (product_id, url, storage_key, format, width, height, bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		img.ProductID, img.URL, img.StorageKey, img.Format, img.Width, img.Height, img.Bytes)
	return mapError(err)
}

// GetImage retrieves image metadata by ID
func (s *Store) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	var img models.Image
	if err := s.db.GetContext(ctx, &img, "SELECT "+imageColumns+" FROM images WHERE id = $1", id); err != nil {
		return nil, mapError(err)
	}
	return &img, nil
}

// ListImages returns images newest first, optionally for a single product
func (s *Store) ListImages(ctx context.Context, productID *int64) ([]models.Image, error) {
	images := []models.Image{}
	var err error
	if productID == nil {
		err = s.db.SelectContext(ctx, &images, "SELECT "+imageColumns+" FROM images ORDER BY created_at DESC, id DESC")
	} else {
		err = s.db.SelectContext(ctx, &images,
			"SELECT "+imageColumns+" FROM images WHERE product_id = $1 ORDER BY created_at DESC, id DESC", *productID)
	}
	return images, err
}

// DeleteImage removes image metadata
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
