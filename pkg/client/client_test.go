package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/wishlist/toggle":
			if r.Header.Get("Authorization") != "Bearer tok" {
				_, _ = w.Write([]byte(`{"success":false,"requiresAuth":true,"message":"must sign in"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"action":"added","inWishlist":true}`))
		case r.URL.Path == "/api/shipping":
			if r.URL.Query().Get("zone") != "COSTA" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid shipping zone: \"X\""}`))
				return
			}
			_, _ = w.Write([]byte(`{"zone":"COSTA","modality":"AGENCIA","cost":"15","estimatedDays":"3-5 días hábiles"}`))
		case r.URL.Path == "/api/orders":
			var req OrderRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.DNI == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"missing required fields: dni","details":["dni"]}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"order":{"id":4,"total":"81","status":"PENDING"},"contactLink":"https://wa.me/51999999999?text=x"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	res, err := New(srv.URL).ToggleWishlist(ctx, 3)
	require.NoError(t, err)
	assert.True(t, res.RequiresAuth)

	res, err = New(srv.URL, WithToken("tok")).ToggleWishlist(ctx, 3)
	require.NoError(t, err)
	assert.True(t, res.InWishlist)

	c := New(srv.URL+"/", WithTimeout(time.Second))
	rate, err := c.ShippingRate(ctx, "COSTA", "AGENCIA")
	require.NoError(t, err)
	assert.True(t, rate.Cost.Equal(decimal.NewFromInt(15)))

	_, err = c.ShippingRate(ctx, "X", "AGENCIA")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = c.CreateOrder(ctx, &OrderRequest{ShippingZone: "COSTA"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"dni"}, apiErr.Details)

	out, err := c.CreateOrder(ctx, &OrderRequest{Customer: Customer{DNI: "12345678"}, ShippingZone: "COSTA"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.Order.ID)
	assert.True(t, out.Order.Total.Equal(decimal.NewFromInt(81)))
}

// scriptedToggler answers toggles from a queue and blocks until released
type scriptedToggler struct {
	mu      sync.Mutex
	answers []func() (*ToggleResult, error)
	release chan struct{}
}

func (s *scriptedToggler) ToggleWishlist(_ context.Context, _ int64) (*ToggleResult, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	next := s.answers[0]
	s.answers = s.answers[1:]
	s.mu.Unlock()
	return next()
}

func answer(res *ToggleResult, err error) func() (*ToggleResult, error) {
	return func() (*ToggleResult, error) { return res, err }
}

func TestMirrorAppliesBeforeServerAnswers(t *testing.T) {
	api := &scriptedToggler{
		release: make(chan struct{}),
		answers: []func() (*ToggleResult, error){answer(&ToggleResult{Success: true, Action: "added", InWishlist: true}, nil)},
	}
	m := NewWishlistMirror(api, nil, nil)

	done := m.Toggle(context.Background(), 7)
	assert.True(t, m.Contains(7))

	close(api.release)
	out := <-done
	assert.NoError(t, out.Err)
	assert.False(t, out.RolledBack)
	assert.True(t, m.Contains(7))
}

func TestMirrorRollsBackOnFailure(t *testing.T) {
	api := &scriptedToggler{answers: []func() (*ToggleResult, error){
		answer(nil, errors.New("network down")),
		answer(&ToggleResult{Success: false, RequiresAuth: true, Message: "must sign in"}, nil),
		answer(&ToggleResult{Success: true, Action: "added", InWishlist: true}, nil),
	}}
	m := NewWishlistMirror(api, []int64{1}, nil)

	out := <-m.Toggle(context.Background(), 1)
	assert.True(t, out.RolledBack)
	assert.EqualError(t, out.Err, "network down")
	assert.True(t, m.Contains(1))

	out = <-m.Toggle(context.Background(), 2)
	assert.True(t, out.RolledBack)
	assert.ErrorIs(t, out.Err, ErrSignInRequired)
	assert.False(t, m.Contains(2))

	// server says the product is still saved, so the removal is undone
	out = <-m.Toggle(context.Background(), 1)
	assert.True(t, out.RolledBack)
	assert.True(t, m.Contains(1))
	assert.Equal(t, []int64{1}, m.IDs())
}

func TestMirrorKeepsNewerToggle(t *testing.T) {
	api := &scriptedToggler{
		release: make(chan struct{}),
		answers: []func() (*ToggleResult, error){
			answer(nil, errors.New("timeout")),
			answer(nil, errors.New("timeout")),
		},
	}
	m := NewWishlistMirror(api, nil, nil)

	first := m.Toggle(context.Background(), 9)
	second := m.Toggle(context.Background(), 9)
	assert.False(t, m.Contains(9))

	api.release <- struct{}{}
	api.release <- struct{}{}
	<-first
	<-second
	m.Wait()

	// the second toggle restores its own prior state; the first one was superseded
	assert.True(t, m.Contains(9))
}

type failingPersister struct {
	FilePersister
	fail bool
}

func (p *failingPersister) Save(items []CartItem) error {
	if p.fail {
		return errors.New("disk full")
	}
	return p.FilePersister.Save(items)
}

func TestCartPersistsAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	cart, err := NewCart(FilePersister{Path: path})
	require.NoError(t, err)

	require.NoError(t, cart.Add(CartItem{ProductID: 1, Name: "Serum", UnitPrice: decimal.RequireFromString("25.50"), Quantity: 1}))
	require.NoError(t, cart.Add(CartItem{ProductID: 1, Name: "Serum", UnitPrice: decimal.RequireFromString("25.50"), Quantity: 1}))
	require.NoError(t, cart.Add(CartItem{ProductID: 2, Name: "Toner", UnitPrice: decimal.RequireFromString("10"), Quantity: 1}))
	assert.Error(t, cart.Add(CartItem{ProductID: 3, Quantity: 0}))

	reloaded, err := NewCart(FilePersister{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Count())
	assert.True(t, reloaded.Subtotal().Equal(decimal.RequireFromString("61")))

	require.NoError(t, reloaded.SetQuantity(2, 0))
	assert.Len(t, reloaded.Items(), 1)
}

func TestCartUndoesChangeWhenSaveFails(t *testing.T) {
	p := &failingPersister{FilePersister: FilePersister{Path: filepath.Join(t.TempDir(), "cart.json")}}
	cart, err := NewCart(p)
	require.NoError(t, err)
	require.NoError(t, cart.Add(CartItem{ProductID: 1, UnitPrice: decimal.NewFromInt(5), Quantity: 2}))

	p.fail = true
	assert.Error(t, cart.Remove(1))
	assert.Equal(t, 2, cart.Count())
}

type recordingCreator struct {
	got *OrderRequest
	err error
}

func (r *recordingCreator) CreateOrder(_ context.Context, req *OrderRequest) (*OrderResult, error) {
	r.got = req
	if r.err != nil {
		return nil, r.err
	}
	return &OrderResult{Order: Order{ID: 1}}, nil
}

func TestCheckout(t *testing.T) {
	cart, err := NewCart(nil)
	require.NoError(t, err)
	api := &recordingCreator{}

	_, err = cart.Checkout(context.Background(), api, Customer{DNI: "1"}, "COSTA", "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, cart.Add(CartItem{ProductID: 4, UnitPrice: decimal.NewFromInt(5), Quantity: 3}))

	api.err = &APIError{Status: http.StatusNotFound, Message: "product not found: 4"}
	_, err = cart.Checkout(context.Background(), api, Customer{DNI: "1"}, "COSTA", "")
	assert.Error(t, err)
	assert.Equal(t, 3, cart.Count())

	api.err = nil
	res, err := cart.Checkout(context.Background(), api, Customer{DNI: "1"}, "COSTA", "AGENCIA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Order.ID)
	assert.Equal(t, []OrderLine{{ProductID: 4, Quantity: 3}}, api.got.Items)
	assert.Equal(t, "AGENCIA", api.got.ShippingModality)
	assert.Zero(t, cart.Count())
}
