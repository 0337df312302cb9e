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

func TestToggleRequiresSignIn(t *testing.T) {
	st := storetest.New()
	svc := NewWishlistService(st)
	id := seedProduct(t, st, "Serum", "20", true)

	res, err := svc.Toggle(context.Background(), nil, id)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresAuth)
	assert.Equal(t, "must sign in", res.Message)
	assert.Zero(t, st.WishlistSize())
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	st := storetest.New()
	svc := NewWishlistService(st)
	id := seedProduct(t, st, "Serum", "20", true)
	user := &models.User{ID: 7}
	ctx := context.Background()

	res, err := svc.Toggle(ctx, user, id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, WishlistAdded, res.Action)
	assert.True(t, res.InWishlist)

	in, err := svc.Contains(ctx, user.ID, id)
	require.NoError(t, err)
	assert.True(t, in)

	res, err = svc.Toggle(ctx, user, id)
	require.NoError(t, err)
	assert.Equal(t, WishlistRemoved, res.Action)
	assert.False(t, res.InWishlist)

	in, err = svc.Contains(ctx, user.ID, id)
	require.NoError(t, err)
	assert.False(t, in)
	assert.Zero(t, st.WishlistSize())
}

func TestToggleTreatsDuplicateInsertAsAdded(t *testing.T) {
	st := storetest.New()
	id := seedProduct(t, st, "Serum", "20", true)
	racy := &racyWishlist{Store: st}
	svc := NewWishlistService(racy)

	res, err := svc.Toggle(context.Background(), &models.User{ID: 1}, id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, WishlistAdded, res.Action)
	assert.Equal(t, 1, st.WishlistSize())
}

// racyWishlist inserts the pair between the remove and the add, like a concurrent toggle would
type racyWishlist struct {
	*storetest.Store
}

func (r *racyWishlist) RemoveWishlistItem(ctx context.Context, userID, productID int64) (bool, error) {
	removed, err := r.Store.RemoveWishlistItem(ctx, userID, productID)
	if err == nil && !removed {
		err = r.Store.AddWishlistItem(ctx, userID, productID)
	}
	return removed, err
}

func TestToggleUnknownProduct(t *testing.T) {
	svc := NewWishlistService(storetest.New())

	_, err := svc.Toggle(context.Background(), &models.User{ID: 1}, 404)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = svc.Toggle(context.Background(), &models.User{ID: 1}, 0)
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestWishlistListNewestFirst(t *testing.T) {
	st := storetest.New()
	svc := NewWishlistService(st)
	a := seedProduct(t, st, "A", "10", true)
	b := seedProduct(t, st, "B", "10", true)
	user := &models.User{ID: 3}
	ctx := context.Background()

	_, err := svc.Toggle(ctx, user, a)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, user, b)
	require.NoError(t, err)

	items, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b, items[0].ProductID)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "B", items[0].Product.Name)

	ids, err := svc.ProductIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, ids)

	other, err := svc.List(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)
}
