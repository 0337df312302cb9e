// Package client is a Go client for the storefront HTTP API, with the client-side wishlist
// mirror and cart state a shopping front end keeps.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	Status  int      `json:"-"`
	Message string   `json:"error"`
	Details []string `json:"details"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("api: %d %s (%s)", e.Status, e.Message, strings.Join(e.Details, ", "))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to one storefront
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken authenticates requests with a session token
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// WithTimeout bounds every request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithLogger logs failed calls
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL, e.g. "https://shop.example.com"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(15 * time.Second),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

func (c *Client) do(req *resty.Request, method, path string, out any) error {
	apiErr := &APIError{}
	req.SetError(apiErr)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("Storefront request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		c.logger.Debug("Storefront API error", zap.String("path", path), zap.Int("status", apiErr.Status), zap.String("error", apiErr.Message))
		return apiErr
	}
	return nil
}

// ToggleResult is the server's answer to a wishlist toggle
type ToggleResult struct {
	Success      bool   `json:"success"`
	Action       string `json:"action"`
	InWishlist   bool   `json:"inWishlist"`
	RequiresAuth bool   `json:"requiresAuth"`
	Message      string `json:"message"`
}

// ToggleWishlist flips a product's wishlist membership for the signed-in user
func (c *Client) ToggleWishlist(ctx context.Context, productID int64) (*ToggleResult, error) {
	var res ToggleResult
	if err := c.do(c.request(ctx).SetBody(map[string]int64{"productId": productID}), http.MethodPost, "/api/wishlist/toggle", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// WishlistIDs returns the product ids in the signed-in user's wishlist, newest first
func (c *Client) WishlistIDs(ctx context.Context) ([]int64, error) {
	var res struct {
		Items []struct {
			ProductID int64 `json:"productId"`
		} `json:"items"`
	}
	if err := c.do(c.request(ctx), http.MethodGet, "/api/wishlist", &res); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(res.Items))
	for _, it := range res.Items {
		ids = append(ids, it.ProductID)
	}
	return ids, nil
}

// ShippingRate is the cost of one zone and modality
type ShippingRate struct {
	Zone          string          `json:"zone"`
	ZoneLabel     string          `json:"zoneLabel"`
	Modality      string          `json:"modality"`
	ModalityLabel string          `json:"modalityLabel"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays string          `json:"estimatedDays"`
}

// ShippingRate looks up one rate
func (c *Client) ShippingRate(ctx context.Context, zone, modality string) (*ShippingRate, error) {
	var rate ShippingRate
	req := c.request(ctx).SetQueryParams(map[string]string{"zone": zone, "modality": modality})
	if err := c.do(req, http.MethodGet, "/api/shipping", &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Customer is the delivery data collected at checkout
type Customer struct {
	DNI        string `json:"dni"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Department string `json:"department"`
	Province   string `json:"province"`
}

// OrderLine is one product and quantity in an order request
type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest is a checkout submission
type OrderRequest struct {
	Customer
	ShippingZone     string      `json:"shippingZone"`
	ShippingModality string      `json:"shippingModality,omitempty"`
	Items            []OrderLine `json:"items"`
}

// Order is the persisted order as returned by the API
type Order struct {
	ID               int64           `json:"id"`
	ShippingZone     string          `json:"shippingZone"`
	ShippingModality string          `json:"shippingModality"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingCost     decimal.Decimal `json:"shippingCost"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// OrderResult is the order plus the link that opens the chat with the store
type OrderResult struct {
	Order       Order  `json:"order"`
	ContactLink string `json:"contactLink"`
}

// CreateOrder submits a checkout
func (c *Client) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	var res OrderResult
	if err := c.do(c.request(ctx).SetBody(req), http.MethodPost, "/api/orders", &res); err != nil {
		return nil, err
	}
	return &res, nil
}
