package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories"
)

type categoryRepository struct{ r *Registry }

const categoryColumns = `id, name, slug, description, parent_id, image, is_active, sort_order, created_at, updated_at`

func (repo categoryRepository) Insert(ctx context.Context, category domain.Category) error {
	const op = "categories.insert"
	_, err := repo.r.conn(ctx).ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, category.ID, category.Name, category.Slug, nullString(category.Description), nullString(category.ParentID),
		nullString(category.Image), category.IsActive, category.SortOrder, category.CreatedAt, category.UpdatedAt)
	return wrapError(op, err)
}

func (repo categoryRepository) Update(ctx context.Context, category domain.Category) error {
	const op = "categories.update"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `
		UPDATE categories SET
			name = $2, slug = $3, description = $4, parent_id = $5, image = $6,
			is_active = $7, sort_order = $8, updated_at = $9
		WHERE id = $1
	`, category.ID, category.Name, category.Slug, nullString(category.Description), nullString(category.ParentID),
		nullString(category.Image), category.IsActive, category.SortOrder, category.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "category", category.ID, res)
}

func (repo categoryRepository) Delete(ctx context.Context, categoryID string) error {
	const op = "categories.delete"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "category", categoryID, res)
}

func (repo categoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	const op = "categories.find"
	row := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, categoryID)
	category, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return domain.Category{}, notFound(op, "category", categoryID)
	}
	return category, wrapError(op, err)
}

func (repo categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	const op = "categories.list"
	rows, err := repo.r.conn(ctx).QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		ORDER BY sort_order, name COLLATE "C", id
	`)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, wrapError(op, err)
		}
		out = append(out, category)
	}
	return out, wrapError(op, rows.Err())
}

func (repo categoryRepository) CountChildren(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id = $1`, categoryID).Scan(&count)
	return count, wrapError("categories.count_children", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var (
		c                          domain.Category
		description, parent, image sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &description, &parent, &image,
		&c.IsActive, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Category{}, err
	}
	c.Description = stringPtr(description)
	c.ParentID = stringPtr(parent)
	c.Image = stringPtr(image)
	return c, nil
}

type brandRepository struct{ r *Registry }

const brandColumns = `id, name, slug, description, logo, website, is_active, created_at, updated_at`

func (repo brandRepository) Insert(ctx context.Context, brand domain.Brand) error {
	_, err := repo.r.conn(ctx).ExecContext(ctx, `
		INSERT INTO brands (`+brandColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, brand.ID, brand.Name, brand.Slug, nullString(brand.Description), nullString(brand.Logo),
		nullString(brand.Website), brand.IsActive, brand.CreatedAt, brand.UpdatedAt)
	return wrapError("brands.insert", err)
}

func (repo brandRepository) Update(ctx context.Context, brand domain.Brand) error {
	const op = "brands.update"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `
		UPDATE brands SET
			name = $2, slug = $3, description = $4, logo = $5, website = $6,
			is_active = $7, updated_at = $8
		WHERE id = $1
	`, brand.ID, brand.Name, brand.Slug, nullString(brand.Description), nullString(brand.Logo),
		nullString(brand.Website), brand.IsActive, brand.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "brand", brand.ID, res)
}

func (repo brandRepository) Delete(ctx context.Context, brandID string) error {
	const op = "brands.delete"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `DELETE FROM brands WHERE id = $1`, brandID)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "brand", brandID, res)
}

func (repo brandRepository) FindByID(ctx context.Context, brandID string) (domain.Brand, error) {
	const op = "brands.find"
	row := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, brandID)
	brand, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return domain.Brand{}, notFound(op, "brand", brandID)
	}
	return brand, wrapError(op, err)
}

func (repo brandRepository) List(ctx context.Context, filter repositories.BrandListFilter) (domain.CursorPage[domain.Brand], error) {
	const op = "brands.list"
	var w where
	if filter.IsActive != nil {
		w.add("is_active = " + w.arg(*filter.IsActive))
	}
	if filter.Search != nil {
		w.add("name ILIKE " + w.arg(like(*filter.Search)))
	}
	limitClause, offset, limit, err := window(&w, filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Brand]{}, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := repo.r.conn(ctx).QueryContext(ctx,
		`SELECT `+brandColumns+` FROM brands`+w.String()+` ORDER BY name COLLATE "C", id`+limitClause, w.args...)
	if err != nil {
		return domain.CursorPage[domain.Brand]{}, wrapError(op, err)
	}
	defer rows.Close()

	var items []domain.Brand
	for rows.Next() {
		brand, err := scanBrand(rows)
		if err != nil {
			return domain.CursorPage[domain.Brand]{}, wrapError(op, err)
		}
		items = append(items, brand)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Brand]{}, wrapError(op, err)
	}
	return page(items, offset, limit), nil
}

func scanBrand(row rowScanner) (domain.Brand, error) {
	var (
		b                          domain.Brand
		description, logo, website sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Slug, &description, &logo, &website,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Brand{}, err
	}
	b.Description = stringPtr(description)
	b.Logo = stringPtr(logo)
	b.Website = stringPtr(website)
	return b, nil
}

type productRepository struct{ r *Registry }

const productColumns = `id, name, slug, sku, description, short_description, price, compare_price, stock,
	images, category_id, brand_id, available, featured, is_new_in, tags, meta_title, meta_description,
	weight, dimensions, created_at, updated_at`

type dimensionsRow struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func encodeDimensions(d *domain.Dimensions) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(dimensionsRow{Length: d.Length, Width: d.Width, Height: d.Height})
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (repo productRepository) Insert(ctx context.Context, p domain.Product) error {
	const op = "products.insert"
	dims, err := encodeDimensions(p.Dimensions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = repo.r.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, p.ID, p.Name, p.Slug, p.SKU, p.Description, nullString(p.ShortDescription), p.Price, nullInt64(p.ComparePrice),
		p.Stock, nonNil(p.Images), p.CategoryID, nullString(p.BrandID), p.Available, p.Featured, p.IsNewIn,
		nonNil(p.Tags), nullString(p.MetaTitle), nullString(p.MetaDescription), nullFloat(p.Weight), dims,
		p.CreatedAt, p.UpdatedAt)
	return wrapError(op, err)
}

// Update leaves sku and created_at untouched.
func (repo productRepository) Update(ctx context.Context, p domain.Product) error {
	const op = "products.update"
	dims, err := encodeDimensions(p.Dimensions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := repo.r.conn(ctx).ExecContext(ctx, `
		UPDATE products SET
			name = $2, slug = $3, description = $4, short_description = $5, price = $6,
			compare_price = $7, stock = $8, images = $9, category_id = $10, brand_id = $11,
			available = $12, featured = $13, is_new_in = $14, tags = $15, meta_title = $16,
			meta_description = $17, weight = $18, dimensions = $19, updated_at = $20
		WHERE id = $1
	`, p.ID, p.Name, p.Slug, p.Description, nullString(p.ShortDescription), p.Price, nullInt64(p.ComparePrice),
		p.Stock, nonNil(p.Images), p.CategoryID, nullString(p.BrandID), p.Available, p.Featured, p.IsNewIn,
		nonNil(p.Tags), nullString(p.MetaTitle), nullString(p.MetaDescription), nullFloat(p.Weight), dims,
		p.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "product", p.ID, res)
}

// Delete cascades to variants; order items keep their snapshot with the references nulled.
func (repo productRepository) Delete(ctx context.Context, productID string) error {
	const op = "products.delete"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "product", productID, res)
}

func (repo productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	const op = "products.find"
	row := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(newArrays(), row)
	if err == sql.ErrNoRows {
		return domain.Product{}, notFound(op, "product", productID)
	}
	return product, wrapError(op, err)
}

var productSortColumns = map[domain.ProductSort]string{
	domain.ProductSortName:      `name COLLATE "C"`,
	domain.ProductSortPrice:     "price",
	domain.ProductSortCreatedAt: "created_at",
}

func (repo productRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	const op = "products.list"
	var w where
	if filter.CategoryID != nil {
		w.add("category_id = " + w.arg(*filter.CategoryID))
	}
	if filter.BrandID != nil {
		w.add("brand_id = " + w.arg(*filter.BrandID))
	}
	if filter.Available != nil {
		w.add("available = " + w.arg(*filter.Available))
	}
	if filter.PriceRange.From != nil {
		w.add("price >= " + w.arg(*filter.PriceRange.From))
	}
	if filter.PriceRange.To != nil {
		w.add("price <= " + w.arg(*filter.PriceRange.To))
	}
	if filter.Search != nil {
		pattern := w.arg(like(*filter.Search))
		w.add(fmt.Sprintf("(name ILIKE %[1]s OR description ILIKE %[1]s OR sku ILIKE %[1]s)", pattern))
	}

	column, ok := productSortColumns[filter.Sort]
	if !ok {
		column = productSortColumns[domain.ProductSortCreatedAt]
	}
	direction := "DESC"
	if filter.Order == domain.SortAsc {
		direction = "ASC"
	}
	orderBy := fmt.Sprintf(" ORDER BY %s %s, id %s", column, direction, direction)

	limitClause, offset, limit, err := window(&w, filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := repo.r.conn(ctx).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+w.String()+orderBy+limitClause, w.args...)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, wrapError(op, err)
	}
	defer rows.Close()

	arr := newArrays()
	var items []domain.Product
	for rows.Next() {
		product, err := scanProduct(arr, rows)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, wrapError(op, err)
		}
		items = append(items, product)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Product]{}, wrapError(op, err)
	}
	return page(items, offset, limit), nil
}

func (repo productRepository) CountByBrand(ctx context.Context, brandID string) (int, error) {
	var count int
	err := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE brand_id = $1`, brandID).Scan(&count)
	return count, wrapError("products.count_by_brand", err)
}

func (repo productRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, categoryID).Scan(&count)
	return count, wrapError("products.count_by_category", err)
}

func scanProduct(arr arrays, row rowScanner) (domain.Product, error) {
	var (
		p                                        domain.Product
		shortDesc, brandID, metaTitle, metaDescr sql.NullString
		comparePrice                             sql.NullInt64
		weight                                   sql.NullFloat64
		dims                                     []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.SKU, &p.Description, &shortDesc, &p.Price, &comparePrice,
		&p.Stock, arr.text(&p.Images), &p.CategoryID, &brandID, &p.Available, &p.Featured, &p.IsNewIn,
		arr.text(&p.Tags), &metaTitle, &metaDescr, &weight, &dims, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.ShortDescription = stringPtr(shortDesc)
	p.BrandID = stringPtr(brandID)
	p.MetaTitle = stringPtr(metaTitle)
	p.MetaDescription = stringPtr(metaDescr)
	p.ComparePrice = int64Ptr(comparePrice)
	if weight.Valid {
		w := weight.Float64
		p.Weight = &w
	}
	if len(dims) > 0 {
		var d dimensionsRow
		if err := json.Unmarshal(dims, &d); err != nil {
			return domain.Product{}, fmt.Errorf("decode dimensions: %w", err)
		}
		p.Dimensions = &domain.Dimensions{Length: d.Length, Width: d.Width, Height: d.Height}
	}
	p.Images = nonNil(p.Images)
	p.Tags = nonNil(p.Tags)
	return p, nil
}

type variantRepository struct{ r *Registry }

const variantColumns = `id, product_id, size, color, color_hex, sku, stock, price, images, is_active, created_at, updated_at`

func (repo variantRepository) Insert(ctx context.Context, v domain.ProductVariant) error {
	_, err := repo.r.conn(ctx).ExecContext(ctx, `
		INSERT INTO product_variants (`+variantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, v.ID, v.ProductID, v.Size, v.Color, v.ColorHex, v.SKU, v.Stock, nullInt64(v.Price), nonNil(v.Images),
		v.IsActive, v.CreatedAt, v.UpdatedAt)
	return wrapError("variants.insert", err)
}

func (repo variantRepository) Update(ctx context.Context, v domain.ProductVariant) error {
	const op = "variants.update"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `
		UPDATE product_variants SET
			size = $2, color = $3, color_hex = $4, sku = $5, stock = $6, price = $7,
			images = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`, v.ID, v.Size, v.Color, v.ColorHex, v.SKU, v.Stock, nullInt64(v.Price), nonNil(v.Images), v.IsActive, v.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "variant", v.ID, res)
}

func (repo variantRepository) Delete(ctx context.Context, variantID string) error {
	const op = "variants.delete"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1`, variantID)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "variant", variantID, res)
}

func (repo variantRepository) FindByID(ctx context.Context, variantID string) (domain.ProductVariant, error) {
	const op = "variants.find"
	row := repo.r.conn(ctx).QueryRowContext(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, variantID)
	variant, err := scanVariant(newArrays(), row)
	if err == sql.ErrNoRows {
		return domain.ProductVariant{}, notFound(op, "variant", variantID)
	}
	return variant, wrapError(op, err)
}

func (repo variantRepository) ListByProduct(ctx context.Context, productID string, activeOnly bool) ([]domain.ProductVariant, error) {
	const op = "variants.list"
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE product_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY size COLLATE "C", color COLLATE "C", id`

	rows, err := repo.r.conn(ctx).QueryContext(ctx, query, productID)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer rows.Close()

	arr := newArrays()
	out := []domain.ProductVariant{}
	for rows.Next() {
		variant, err := scanVariant(arr, rows)
		if err != nil {
			return nil, wrapError(op, err)
		}
		out = append(out, variant)
	}
	return out, wrapError(op, rows.Err())
}

func scanVariant(arr arrays, row rowScanner) (domain.ProductVariant, error) {
	var (
		v     domain.ProductVariant
		price sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.ColorHex, &v.SKU, &v.Stock, &price,
		arr.text(&v.Images), &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return domain.ProductVariant{}, err
	}
	v.Price = int64Ptr(price)
	v.Images = nonNil(v.Images)
	return v, nil
}
