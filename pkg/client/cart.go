package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrEmptyCart is returned when checking out with nothing in the cart
var ErrEmptyCart = errors.New("cart is empty")

// CartItem is a product line kept on the shopper's device
type CartItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Persister saves cart contents between sessions
type Persister interface {
	Load() ([]CartItem, error)
	Save(items []CartItem) error
}

// FilePersister keeps the cart as a JSON file
type FilePersister struct {
	Path string
}

// Load returns no items when the file does not exist yet
func (p FilePersister) Load() ([]CartItem, error) {
	b, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []CartItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("corrupt cart file %s: %w", p.Path, err)
	}
	return items, nil
}

// Save replaces the file atomically
func (p FilePersister) Save(items []CartItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), ".cart-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}

// Cart is the shopper's pending order. Every mutation is written through the Persister;
// when the write fails the change is undone and the error returned.
type Cart struct {
	mu      sync.Mutex
	items   []CartItem
	persist Persister
}

// NewCart loads the saved cart. A nil persister keeps the cart in memory only.
func NewCart(p Persister) (*Cart, error) {
	c := &Cart{persist: p}
	if p == nil {
		return c, nil
	}
	items, err := p.Load()
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Quantity > 0 {
			c.items = append(c.items, it)
		}
	}
	return c, nil
}

// mutate applies fn and saves, restoring the previous items if saving fails. Caller holds mu.
func (c *Cart) mutate(fn func(items []CartItem) []CartItem) error {
	prev := append([]CartItem(nil), c.items...)
	c.items = fn(append([]CartItem(nil), c.items...))
	if c.persist == nil {
		return nil
	}
	if err := c.persist.Save(c.items); err != nil {
		c.items = prev
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Add puts item in the cart, adding to the quantity of a line for the same product
func (c *Cart) Add(item CartItem) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", item.Quantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mutate(func(items []CartItem) []CartItem {
		for i := range items {
			if items[i].ProductID == item.ProductID {
				items[i].Quantity += item.Quantity
				return items
			}
		}
		return append(items, item)
	})
}

// SetQuantity changes a line's quantity; zero or less removes it
func (c *Cart) SetQuantity(productID int64, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mutate(func(items []CartItem) []CartItem {
		out := items[:0]
		for _, it := range items {
			if it.ProductID == productID {
				if qty <= 0 {
					continue
				}
				it.Quantity = qty
			}
			out = append(out, it)
		}
		return out
	})
}

// Remove drops a product from the cart
func (c *Cart) Remove(productID int64) error {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart
func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutate(func([]CartItem) []CartItem { return nil })
}

// Items returns a copy of the cart lines
func (c *Cart) Items() []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CartItem(nil), c.items...)
}

// Count is the number of units in the cart
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Subtotal is the cart value at the prices the shopper saw. The server reprices at checkout.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// OrderCreator submits orders
type OrderCreator interface {
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
}

// Checkout submits the cart as an order and empties it once the server accepts.
// A cart that cannot be cleared afterwards is reported alongside the created order.
func (c *Cart) Checkout(ctx context.Context, api OrderCreator, customer Customer, zone, modality string) (*OrderResult, error) {
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	req := &OrderRequest{
		Customer:         customer,
		ShippingZone:     zone,
		ShippingModality: modality,
		Items:            make([]OrderLine, 0, len(items)),
	}
	for _, it := range items {
		req.Items = append(req.Items, OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := api.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.Clear(); err != nil {
		return res, err
	}
	return res, nil
}
