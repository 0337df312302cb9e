package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// TagType classifies a tag
type TagType string

const (
	TagTypeSkinType TagType = "SKIN_TYPE"
	TagTypeConcern  TagType = "CONCERN"
	TagTypeCategory TagType = "CATEGORY"
)

// Valid reports whether t is a known tag type
func (t TagType) Valid() bool {
	switch t {
	case TagTypeSkinType, TagTypeConcern, TagTypeCategory:
		return true
	}
	return false
}

// Tag is a classification label attachable to products
type Tag struct {
	ID   int64   `db:"id" json:"id"`
	Name string  `db:"name" json:"name"`
	Slug string  `db:"slug" json:"slug"`
	Type TagType `db:"type" json:"type"`
}

// Brand groups products by manufacturer
type Brand struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Logo         string    `db:"logo" json:"logo,omitempty"`
	ProductCount int       `db:"product_count" json:"productCount"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64               `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Description string              `db:"description" json:"description"`
	Price       decimal.Decimal     `db:"price" json:"price"`
	SalePrice   decimal.NullDecimal `db:"sale_price" json:"salePrice"`
	Images      pq.StringArray      `db:"images" json:"images"`
	Available   bool                `db:"available" json:"available"`
	Featured    bool                `db:"featured" json:"featured"`
	BrandID     *int64              `db:"brand_id" json:"brandId"`
	Brand       *Brand              `db:"-" json:"brand,omitempty"`
	Tags        []Tag               `db:"-" json:"tags"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}

// Product sort keys
const (
	SortByPrice     = "price"
	SortByName      = "name"
	SortByCreatedAt = "createdAt"
)

// ProductFilter holds catalog listing criteria
type ProductFilter struct {
	Search    string
	Tags      []string
	Available *bool
	Featured  *bool
	BrandID   *int64
	SortBy    string
	SortDesc  bool
	Page      int
	Limit     int
}

// Offset returns the row offset for the filter's page
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page counts for total rows
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

// Order statuses, forward-only in this order
const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusShipped, OrderStatusDelivered}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Next returns the only status s may move to, or "" when s is terminal
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case OrderStatusPending:
		return OrderStatusShipped
	case OrderStatusShipped:
		return OrderStatusDelivered
	}
	return ""
}

// Order represents a customer order
type Order struct {
	ID               int64           `db:"id" json:"id"`
	DNI              string          `db:"dni" json:"dni"`
	FullName         string          `db:"full_name" json:"fullName"`
	Phone            string          `db:"phone" json:"phone"`
	Address          string          `db:"address" json:"address"`
	Department       string          `db:"department" json:"department"`
	Province         string          `db:"province" json:"province"`
	ShippingZone     string          `db:"shipping_zone" json:"shippingZone"`
	ShippingModality string          `db:"shipping_modality" json:"shippingModality"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost     decimal.Decimal `db:"shipping_cost" json:"shippingCost"`
	Total            decimal.Decimal `db:"total" json:"total"`
	Status           OrderStatus     `db:"status" json:"status"`
	Items            []OrderItem     `db:"-" json:"items,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem represents items in an order; UnitPrice is the product price at order time
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"orderId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// LineTotal is UnitPrice × Quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderFilter holds order listing criteria
type OrderFilter struct {
	Status OrderStatus
	Page   int
	Limit  int
}

// OrderStatusChange is one entry of an order's status history
type OrderStatusChange struct {
	OrderID   int64       `db:"order_id" json:"orderId"`
	Status    OrderStatus `db:"status" json:"status"`
	ChangedAt time.Time   `db:"changed_at" json:"changedAt"`
}

// WishlistItem links a user to a liked product
type WishlistItem struct {
	UserID    int64     `db:"user_id" json:"userId"`
	ProductID int64     `db:"product_id" json:"productId"`
	Product   *Product  `db:"-" json:"product,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Role is a user's authorization level
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User is an account created on first sign-in
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Image     string    `db:"image" json:"image,omitempty"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Image is metadata for a file stored on the image host
type Image struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  *int64    `db:"product_id" json:"productId"`
	URL        string    `db:"url" json:"url"`
	StorageKey string    `db:"storage_key" json:"storageKey"`
	Format     string    `db:"format" json:"format"`
	Width      int       `db:"width" json:"width"`
	Height     int       `db:"height" json:"height"`
	Bytes      int64     `db:"bytes" json:"bytes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
