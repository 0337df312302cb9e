package store

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const productColumns = `p.id, p.name, p.description, p.price, p.sale_price, p.images,
	p.available, p.featured, p.brand_id, p.created_at, p.updated_at`

var productSortColumns = map[string]string{
	models.SortByPrice:     "p.price",
	models.SortByName:      "p.name",
	models.SortByCreatedAt: "p.created_at",
}

// productWhere builds the WHERE clause shared by the list and count queries
func productWhere(f models.ProductFilter) (string, []any) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", p, p))
	}
	if len(f.Tags) > 0 {
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM product_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.product_id = p.id AND t.slug = ANY(%s))`, arg(pq.Array(f.Tags))))
	}
	if f.Available != nil {
		conds = append(conds, "p.available = "+arg(*f.Available))
	}
	if f.Featured != nil {
		conds = append(conds, "p.featured = "+arg(*f.Featured))
	}
	if f.BrandID != nil {
		conds = append(conds, "p.brand_id = "+arg(*f.BrandID))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListProducts returns one page of products matching the filter and the total match count
func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	where, args := productWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	col, ok := productSortColumns[f.SortBy]
	if !ok {
		col = productSortColumns[models.SortByCreatedAt]
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM products p%s ORDER BY %s %s, p.id %s LIMIT %d OFFSET %d",
		productColumns, where, col, dir, dir, f.Limit, f.Offset())

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	if err := s.attachRelations(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProductByID retrieves a product by ID with its brand and tags
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products p WHERE p.id = $1", id)
	if err != nil {
		return nil, mapError(err)
	}

	list := []models.Product{product}
	if err := s.attachRelations(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products p WHERE p.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// CountProducts returns the number of products in the catalog
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products")
	return n, err
}

// CreateProduct inserts a product and its tag links
func (s *Store) CreateProduct(ctx context.Context, p *models.Product, tagIDs []int64) error {
	return mapError(s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO products (name, description, price, sale_price, images, available, featured, brand_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at`

		err := tx.GetContext(ctx, p, query,
			p.Name, p.Description, p.Price, p.SalePrice, p.Images, p.Available, p.Featured, p.BrandID)
		if err != nil {
			return err
		}
		return replaceProductTags(ctx, tx, p.ID, tagIDs)
	}))
}

// UpdateProduct writes every column of p; tag links are replaced only when tagIDs is non-nil
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product, tagIDs []int64) error {
	return mapError(s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE products
			SET name = $1, description = $2, price = $3, sale_price = $4, images = $5,
			    available = $6, featured = $7, brand_id = $8, updated_at = NOW()
			WHERE id = $9
			RETURNING updated_at`

		if err := tx.GetContext(ctx, &p.UpdatedAt, query,
			p.Name, p.Description, p.Price, p.SalePrice, p.Images,
			p.Available, p.Featured, p.BrandID, p.ID); err != nil {
			return err
		}

		if tagIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM product_tags WHERE product_id = $1", p.ID); err != nil {
			return err
		}
		return replaceProductTags(ctx, tx, p.ID, tagIDs)
	}))
}

func replaceProductTags(ctx context.Context, tx *sqlx.Tx, productID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO product_tags (product_id, tag_id) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING",
		productID, pq.Array(tagIDs))
	return err
}

// DeleteProduct removes a product; order items keep it referenced
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type productTag struct {
	ProductID int64 `db:"product_id"`
	models.Tag
}

// attachRelations loads tags and brands for a page of products
func (s *Store) attachRelations(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	var brandIDs []int64
	for i := range products {
		ids[i] = products[i].ID
		products[i].Tags = []models.Tag{}
		if products[i].BrandID != nil {
			brandIDs = append(brandIDs, *products[i].BrandID)
		}
	}

	var links []productTag
	err := s.db.SelectContext(ctx, &links, `
		SELECT pt.product_id, t.id, t.name, t.slug, t.type
		FROM product_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.product_id = ANY($1)
		ORDER BY t.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load product tags: %w", err)
	}

	byProduct := make(map[int64][]models.Tag, len(products))
	for _, l := range links {
		byProduct[l.ProductID] = append(byProduct[l.ProductID], l.Tag)
	}

	brands := make(map[int64]*models.Brand)
	if len(brandIDs) > 0 {
		var rows []models.Brand
		err := s.db.SelectContext(ctx, &rows,
			"SELECT id, name, logo, created_at, updated_at FROM brands WHERE id = ANY($1)", pq.Array(brandIDs))
		if err != nil {
			return fmt.Errorf("failed to load product brands: %w", err)
		}
		for i := range rows {
			brands[rows[i].ID] = &rows[i]
		}
	}

	for i := range products {
		if tags, ok := byProduct[products[i].ID]; ok {
			products[i].Tags = tags
		}
		if products[i].BrandID != nil {
			products[i].Brand = brands[*products[i].BrandID]
		}
	}
	return nil
}
