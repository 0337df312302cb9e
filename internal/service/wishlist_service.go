package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// WishlistStore is the persistence the wishlist service needs
type WishlistStore interface {
	AddWishlistItem(ctx context.Context, userID, productID int64) error
	RemoveWishlistItem(ctx context.Context, userID, productID int64) (bool, error)
	WishlistContains(ctx context.Context, userID, productID int64) (bool, error)
	ListWishlist(ctx context.Context, userID int64) ([]models.WishlistItem, error)
}

// Toggle actions
const (
	WishlistAdded   = "added"
	WishlistRemoved = "removed"
)

// ToggleResult is the outcome of a wishlist toggle
type ToggleResult struct {
	Success      bool   `json:"success"`
	Action       string `json:"action,omitempty"`
	InWishlist   bool   `json:"inWishlist"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
	Message      string `json:"message,omitempty"`
}

// WishlistService handles wishlist membership for signed-in users
type WishlistService struct {
	store  WishlistStore
	logger *zap.Logger
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(store WishlistStore) *WishlistService {
	return &WishlistService{store: store, logger: util.GetLogger()}
}

// Toggle adds the product when absent and removes it when present.
// A nil user gets a sign-in prompt and nothing is written.
func (s *WishlistService) Toggle(ctx context.Context, user *models.User, productID int64) (*ToggleResult, error) {
	if user == nil {
		util.WishlistTogglesTotal.WithLabelValues("unauthenticated").Inc()
		return &ToggleResult{Success: false, RequiresAuth: true, Message: "must sign in"}, nil
	}

	ctx, span := util.StartSpan(ctx, "WishlistService.Toggle",
		attribute.Int64("user.id", user.ID), attribute.Int64("product.id", productID))
	defer span.End()

	if productID <= 0 {
		return nil, apperr.MissingFields("productId")
	}

	removed, err := s.store.RemoveWishlistItem(ctx, user.ID, productID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	if removed {
		util.WishlistTogglesTotal.WithLabelValues(WishlistRemoved).Inc()
		return &ToggleResult{Success: true, Action: WishlistRemoved, InWishlist: false}, nil
	}

	err = s.store.AddWishlistItem(ctx, user.ID, productID)
	switch {
	case err == nil, errors.Is(err, store.ErrDuplicate):
		// a concurrent toggle may have inserted the same pair first
	case errors.Is(err, store.ErrReferenced):
		return nil, apperr.New(apperr.NotFound, "product not found: %d", productID)
	default:
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to add wishlist item: %w", err)
	}

	util.WishlistTogglesTotal.WithLabelValues(WishlistAdded).Inc()
	s.logger.Debug("Wishlist item added", zap.Int64("user_id", user.ID), zap.Int64("product_id", productID))
	return &ToggleResult{Success: true, Action: WishlistAdded, InWishlist: true}, nil
}

// List returns the user's wishlist, newest first
func (s *WishlistService) List(ctx context.Context, userID int64) ([]models.WishlistItem, error) {
	items, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	return items, nil
}

// Contains reports whether the product is in the user's wishlist
func (s *WishlistService) Contains(ctx context.Context, userID, productID int64) (bool, error) {
	ok, err := s.store.WishlistContains(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return ok, nil
}

// ProductIDs returns the ids in the user's wishlist, newest first
func (s *WishlistService) ProductIDs(ctx context.Context, userID int64) ([]int64, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids, nil
}
