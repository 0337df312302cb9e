package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// AddWishlistItem inserts the (user, product) pair; an existing pair yields ErrDuplicate
func (s *Store) AddWishlistItem(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)", userID, productID)
	return mapError(err)
}

// RemoveWishlistItem deletes the pair and reports whether it existed
func (s *Store) RemoveWishlistItem(ctx context.Context, userID, productID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WishlistContains reports whether the user has the product in their wishlist
func (s *Store) WishlistContains(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)",
		userID, productID)
	return exists, err
}

// ListWishlist returns the user's wishlist with product data, newest first
func (s *Store) ListWishlist(ctx context.Context, userID int64) ([]models.WishlistItem, error) {
	var entries []models.WishlistItem
	err := s.db.SelectContext(ctx, &entries,
		"SELECT user_id, product_id, created_at FROM wishlist_items WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}

	products, err := s.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist products: %w", err)
	}
	if err := s.attachRelations(ctx, products); err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	items := make([]models.WishlistItem, 0, len(entries))
	for _, e := range entries {
		e.Product = byID[e.ProductID]
		items = append(items, e)
	}
	return items, nil
}
