// Package storetest provides an in-memory store with the same contract as store.Store,
// including its sentinel errors, for service and handler tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

type wishKey struct {
	userID    int64
	productID int64
}

// Store is a goroutine-safe in-memory store
type Store struct {
	mu sync.Mutex

	nextID int64

	products    map[int64]models.Product
	productTags map[int64][]int64
	brands      map[int64]models.Brand
	tags        map[int64]models.Tag
	orders      map[int64]models.Order
	orderItems  map[int64][]models.OrderItem
	history     map[int64][]models.OrderStatusChange
	processed   map[string]string
	users       map[int64]models.User
	adminID     int64
	wishlist    map[wishKey]time.Time
	images      map[int64]models.Image

	// FailCreateOrder makes CreateOrder fail without persisting anything
	FailCreateOrder error
}

// New returns an empty store
func New() *Store {
	return &Store{
		products:    map[int64]models.Product{},
		productTags: map[int64][]int64{},
		brands:      map[int64]models.Brand{},
		tags:        map[int64]models.Tag{},
		orders:      map[int64]models.Order{},
		orderItems:  map[int64][]models.OrderItem{},
		history:     map[int64][]models.OrderStatusChange{},
		processed:   map[string]string{},
		users:       map[int64]models.User{},
		wishlist:    map[wishKey]time.Time{},
		images:      map[int64]models.Image{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// now returns strictly increasing timestamps so ordering by time is deterministic
func (s *Store) now() time.Time {
	return time.Unix(1700000000, 0).Add(time.Duration(s.nextID) * time.Second)
}

// ---- products ----

func (s *Store) ListProducts(_ context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Product
	for _, p := range s.products {
		if s.matches(p, f) {
			matched = append(matched, s.withRelations(p))
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch f.SortBy {
		case models.SortByPrice:
			less, equal = a.Price.LessThan(b.Price), a.Price.Equal(b.Price)
		case models.SortByName:
			less, equal = a.Name < b.Name, a.Name == b.Name
		default:
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			less = a.ID < b.ID
		}
		if f.SortDesc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	page := append([]models.Product{}, matched[start:end]...)
	return page, total, nil
}

func (s *Store) matches(p models.Product, f models.ProductFilter) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.Available != nil && p.Available != *f.Available {
		return false
	}
	if f.Featured != nil && p.Featured != *f.Featured {
		return false
	}
	if f.BrandID != nil && (p.BrandID == nil || *p.BrandID != *f.BrandID) {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tagID := range s.productTags[p.ID] {
			for _, slug := range f.Tags {
				if s.tags[tagID].Slug == slug {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) withRelations(p models.Product) models.Product {
	p.Tags = []models.Tag{}
	for _, tagID := range s.productTags[p.ID] {
		p.Tags = append(p.Tags, s.tags[tagID])
	}
	sort.Slice(p.Tags, func(i, j int) bool { return p.Tags[i].Name < p.Tags[j].Name })
	if p.BrandID != nil {
		if b, ok := s.brands[*p.BrandID]; ok {
			p.Brand = &b
		}
	}
	p.Images = append(p.Images[:0:0], p.Images...)
	return p
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = s.withRelations(p)
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Product{}
	seen := map[int64]bool{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products), nil
}

func (s *Store) checkProductRefs(p *models.Product, tagIDs []int64) error {
	if p.BrandID != nil {
		if _, ok := s.brands[*p.BrandID]; !ok {
			return fmt.Errorf("%w: products_brand_id_fkey", store.ErrReferenced)
		}
	}
	for _, id := range tagIDs {
		if _, ok := s.tags[id]; !ok {
			return fmt.Errorf("%w: product_tags_tag_id_fkey", store.ErrReferenced)
		}
	}
	return nil
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product, tagIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkProductRefs(p, tagIDs); err != nil {
		return err
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Tags, stored.Brand = nil, nil
	s.products[p.ID] = stored
	s.productTags[p.ID] = append([]int64{}, tagIDs...)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product, tagIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	if err := s.checkProductRefs(p, tagIDs); err != nil {
		return err
	}
	s.id()
	p.UpdatedAt = s.now()
	stored := *p
	stored.Tags, stored.Brand = nil, nil
	s.products[p.ID] = stored
	if tagIDs != nil {
		s.productTags[p.ID] = append([]int64{}, tagIDs...)
	}
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, items := range s.orderItems {
		for _, it := range items {
			if it.ProductID == id {
				return fmt.Errorf("%w: order_items_product_id_fkey", store.ErrReferenced)
			}
		}
	}
	delete(s.products, id)
	delete(s.productTags, id)
	for k := range s.wishlist {
		if k.productID == id {
			delete(s.wishlist, k)
		}
	}
	return nil
}

// ---- brands ----

func (s *Store) brandWithCount(b models.Brand) models.Brand {
	b.ProductCount = 0
	for _, p := range s.products {
		if p.BrandID != nil && *p.BrandID == b.ID {
			b.ProductCount++
		}
	}
	return b
}

func (s *Store) ListBrands(_ context.Context, page, pageSize int) ([]models.Brand, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		all = append(all, s.brandWithCount(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return append([]models.Brand{}, all[start:end]...), len(all), nil
}

func (s *Store) GetBrand(_ context.Context, id int64) (*models.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.brands[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	b = s.brandWithCount(b)
	return &b, nil
}

func (s *Store) brandNameTaken(name string, except int64) bool {
	for _, b := range s.brands {
		if b.ID != except && b.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateBrand(_ context.Context, b *models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.brandNameTaken(b.Name, 0) {
		return fmt.Errorf("%w: brands_name_key", store.ErrDuplicate)
	}
	b.ID = s.id()
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.brands[b.ID] = *b
	return nil
}

func (s *Store) UpdateBrand(_ context.Context, b *models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.brands[b.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.brandNameTaken(b.Name, b.ID) {
		return fmt.Errorf("%w: brands_name_key", store.ErrDuplicate)
	}
	s.id()
	b.CreatedAt = old.CreatedAt
	b.UpdatedAt = s.now()
	s.brands[b.ID] = *b
	return nil
}

func (s *Store) CountProductsByBrand(_ context.Context, brandID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brandWithCount(models.Brand{ID: brandID}).ProductCount, nil
}

func (s *Store) DeleteBrand(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.brands[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.brandWithCount(b).ProductCount > 0 {
		return fmt.Errorf("%w: products_brand_id_fkey", store.ErrReferenced)
	}
	delete(s.brands, id)
	return nil
}

// ---- tags ----

func (s *Store) ListTags(_ context.Context, tagType models.TagType) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Tag{}
	for _, t := range s.tags {
		if tagType == "" || t.Type == tagType {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetTag(_ context.Context, id int64) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) slugTaken(slug string, except int64) bool {
	for _, t := range s.tags {
		if t.ID != except && t.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) CreateTag(_ context.Context, t *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slugTaken(t.Slug, 0) {
		return fmt.Errorf("%w: tags_slug_key", store.ErrDuplicate)
	}
	t.ID = s.id()
	s.tags[t.ID] = *t
	return nil
}

func (s *Store) UpdateTag(_ context.Context, t *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[t.ID]; !ok {
		return store.ErrNotFound
	}
	if s.slugTaken(t.Slug, t.ID) {
		return fmt.Errorf("%w: tags_slug_key", store.ErrDuplicate)
	}
	s.tags[t.ID] = *t
	return nil
}

func (s *Store) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tags, id)
	for pid, ids := range s.productTags {
		kept := ids[:0]
		for _, tid := range ids {
			if tid != id {
				kept = append(kept, tid)
			}
		}
		s.productTags[pid] = kept
	}
	return nil
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateOrder != nil {
		return s.FailCreateOrder
	}
	for _, it := range items {
		if _, ok := s.products[it.ProductID]; !ok {
			return fmt.Errorf("%w: order_items_product_id_fkey", store.ErrReferenced)
		}
	}

	order.ID = s.id()
	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt
	for i := range items {
		items[i].ID = s.id()
		items[i].OrderID = order.ID
	}

	stored := *order
	stored.Items = nil
	s.orders[order.ID] = stored
	s.orderItems[order.ID] = append([]models.OrderItem{}, items...)
	return nil
}

func (s *Store) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderItem{}, s.orderItems[orderID]...), nil
}

func (s *Store) ListOrders(_ context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Order
	for _, o := range s.orders {
		if f.Status == "" || o.Status == f.Status {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]models.Order{}, all[start:end]...), len(all), nil
}

func (s *Store) CountOrdersByStatus(_ context.Context) (map[models.OrderStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[models.OrderStatus]int{}
	for _, o := range s.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	s.id()
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[orderID] = o
	return true, nil
}

func (s *Store) GetOrderHistory(_ context.Context, orderID int64) ([]models.OrderStatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderStatusChange{}, s.history[orderID]...), nil
}

func (s *Store) RecordOrderEvent(_ context.Context, eventID, eventType string, change models.OrderStatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[eventID]; ok {
		return false, nil
	}
	s.processed[eventID] = eventType
	s.history[change.OrderID] = append(s.history[change.OrderID], change)
	return true, nil
}

// OrderCount returns the number of persisted orders
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// OrderItemCount returns the number of persisted order items
func (s *Store) OrderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, items := range s.orderItems {
		n += len(items)
	}
	return n
}

// ---- wishlist ----

func (s *Store) AddWishlistItem(_ context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return fmt.Errorf("%w: wishlist_items_product_id_fkey", store.ErrReferenced)
	}
	k := wishKey{userID, productID}
	if _, ok := s.wishlist[k]; ok {
		return fmt.Errorf("%w: wishlist_items_pkey", store.ErrDuplicate)
	}
	s.id()
	s.wishlist[k] = s.now()
	return nil
}

func (s *Store) RemoveWishlistItem(_ context.Context, userID, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := wishKey{userID, productID}
	if _, ok := s.wishlist[k]; !ok {
		return false, nil
	}
	delete(s.wishlist, k)
	return true, nil
}

func (s *Store) WishlistContains(_ context.Context, userID, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.wishlist[wishKey{userID, productID}]
	return ok, nil
}

func (s *Store) ListWishlist(_ context.Context, userID int64) ([]models.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.WishlistItem{}
	for k, at := range s.wishlist {
		if k.userID != userID {
			continue
		}
		item := models.WishlistItem{UserID: userID, ProductID: k.productID, CreatedAt: at}
		if p, ok := s.products[k.productID]; ok {
			p = s.withRelations(p)
			item.Product = &p
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// WishlistSize returns the number of stored wishlist pairs
func (s *Store) WishlistSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wishlist)
}

// ---- users ----

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: users_email_key", store.ErrDuplicate)
		}
	}
	u.ID = s.id()
	u.CreatedAt = s.now()
	u.Role = models.RoleUser
	if s.adminID == 0 {
		s.adminID = u.ID
		u.Role = models.RoleAdmin
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdateUserProfile(_ context.Context, id int64, name, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Name, u.Image = name, image
	s.users[id] = u
	return nil
}

// ---- images ----

func (s *Store) CreateImage(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img.ProductID != nil {
		if _, ok := s.products[*img.ProductID]; !ok {
			return fmt.Errorf("%w: images_product_id_fkey", store.ErrReferenced)
		}
	}
	img.ID = s.id()
	img.CreatedAt = s.now()
	s.images[img.ID] = *img
	return nil
}

func (s *Store) GetImage(_ context.Context, id int64) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &img, nil
}

func (s *Store) ListImages(_ context.Context, productID *int64) ([]models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Image{}
	for _, img := range s.images {
		if productID == nil || (img.ProductID != nil && *img.ProductID == *productID) {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) DeleteImage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.images, id)
	return nil
}
