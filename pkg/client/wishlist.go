package client

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrSignInRequired is reported when the server refuses a toggle for a signed-out user
var ErrSignInRequired = errors.New("must sign in")

// WishlistToggler is the server side of a wishlist toggle
type WishlistToggler interface {
	ToggleWishlist(ctx context.Context, productID int64) (*ToggleResult, error)
}

// ToggleOutcome reports how a background toggle settled
type ToggleOutcome struct {
	ProductID  int64
	InWishlist bool
	RolledBack bool
	Err        error
}

// WishlistMirror is a local copy of the user's wishlist that changes before the server confirms.
// A toggle the server rejects, or answers with a different membership, restores the product's
// previous state unless a later toggle of the same product has superseded it.
type WishlistMirror struct {
	mu     sync.Mutex
	ids    map[int64]bool
	gen    map[int64]uint64
	api    WishlistToggler
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewWishlistMirror starts from ids known to be in the wishlist
func NewWishlistMirror(api WishlistToggler, ids []int64, logger *zap.Logger) *WishlistMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &WishlistMirror{
		ids:    make(map[int64]bool, len(ids)),
		gen:    map[int64]uint64{},
		api:    api,
		logger: logger,
	}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

// Contains reports the local belief about productID
func (m *WishlistMirror) Contains(productID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[productID]
}

// IDs returns the mirrored product ids in ascending order
func (m *WishlistMirror) IDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *WishlistMirror) set(productID int64, in bool) {
	if in {
		m.ids[productID] = true
	} else {
		delete(m.ids, productID)
	}
}

// Toggle flips productID locally and returns at once. The server call runs in the background
// and its outcome is delivered on the returned channel, which is buffered and closed after one value.
func (m *WishlistMirror) Toggle(ctx context.Context, productID int64) <-chan ToggleOutcome {
	m.mu.Lock()
	prior := m.ids[productID]
	m.set(productID, !prior)
	m.gen[productID]++
	gen := m.gen[productID]
	m.mu.Unlock()

	out := make(chan ToggleOutcome, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(out)
		out <- m.settle(ctx, productID, prior, gen)
	}()
	return out
}

func (m *WishlistMirror) settle(ctx context.Context, productID int64, prior bool, gen uint64) ToggleOutcome {
	want := !prior
	res, err := m.api.ToggleWishlist(ctx, productID)
	if err == nil {
		switch {
		case res.RequiresAuth:
			err = ErrSignInRequired
		case !res.Success:
			err = errors.New(res.Message)
		case res.InWishlist == want:
			return ToggleOutcome{ProductID: productID, InWishlist: want}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.ids[productID]
	if m.gen[productID] != gen {
		m.logger.Debug("Wishlist toggle superseded", zap.Int64("product_id", productID))
		return ToggleOutcome{ProductID: productID, InWishlist: current, Err: err}
	}

	m.set(productID, prior)
	m.logger.Info("Wishlist toggle rolled back", zap.Int64("product_id", productID), zap.Error(err))
	return ToggleOutcome{ProductID: productID, InWishlist: prior, RolledBack: true, Err: err}
}

// Wait blocks until every pending toggle has settled
func (m *WishlistMirror) Wait() {
	m.wg.Wait()
}
