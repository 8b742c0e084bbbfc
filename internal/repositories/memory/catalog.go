package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories"
)

type categoryRepository struct{ s *Store }

func (r categoryRepository) Insert(ctx context.Context, category domain.Category) error {
	const op = "categories.insert"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.categories[category.ID]; exists {
			return repositories.NewFieldConflictError(op, "id", nil)
		}
		if err := checkCategoryRow(op, d, category); err != nil {
			return err
		}
		d.categories[category.ID] = storedCategory(category)
		return nil
	})
}

func (r categoryRepository) Update(ctx context.Context, category domain.Category) error {
	const op = "categories.update"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.categories[category.ID]; !exists {
			return notFound(op, "category", category.ID)
		}
		if err := checkCategoryRow(op, d, category); err != nil {
			return err
		}
		d.categories[category.ID] = storedCategory(category)
		return nil
	})
}

// checkCategoryRow mirrors the table constraints: the parent must exist and
// names are unique among siblings.
func checkCategoryRow(op string, d *dataset, category domain.Category) error {
	parent := ""
	if category.ParentID != nil {
		parent = *category.ParentID
		if _, ok := d.categories[parent]; !ok {
			return repositories.NewFieldConflictError(op, "parent_id", nil)
		}
	}
	for id, other := range d.categories {
		if id == category.ID {
			continue
		}
		otherParent := ""
		if other.ParentID != nil {
			otherParent = *other.ParentID
		}
		if otherParent == parent && strings.EqualFold(other.Name, category.Name) {
			return repositories.NewFieldConflictError(op, "name", nil)
		}
	}
	return nil
}

func (r categoryRepository) Delete(ctx context.Context, categoryID string) error {
	const op = "categories.delete"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.categories[categoryID]; !exists {
			return notFound(op, "category", categoryID)
		}
		for _, other := range d.categories {
			if other.ParentID != nil && *other.ParentID == categoryID {
				return repositories.NewFieldConflictError(op, "parent_id", nil)
			}
		}
		for _, product := range d.products {
			if product.CategoryID == categoryID {
				return repositories.NewFieldConflictError(op, "category_id", nil)
			}
		}
		delete(d.categories, categoryID)
		return nil
	})
}

func (r categoryRepository) FindByID(_ context.Context, categoryID string) (domain.Category, error) {
	const op = "categories.find"
	var category domain.Category
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.categories[categoryID]
		if !ok {
			return notFound(op, "category", categoryID)
		}
		category = storedCategory(found)
		return nil
	})
	return category, err
}

func (r categoryRepository) List(context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.s.read("categories.list", func(d *dataset) error {
		out = make([]domain.Category, 0, len(d.categories))
		for _, category := range d.categories {
			out = append(out, storedCategory(category))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, err
}

func (r categoryRepository) CountChildren(_ context.Context, categoryID string) (int, error) {
	count := 0
	err := r.s.read("categories.count_children", func(d *dataset) error {
		for _, category := range d.categories {
			if category.ParentID != nil && *category.ParentID == categoryID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func storedCategory(category domain.Category) domain.Category {
	category.Children = nil
	return category
}

type brandRepository struct{ s *Store }

func (r brandRepository) Insert(ctx context.Context, brand domain.Brand) error {
	const op = "brands.insert"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.brands[brand.ID]; exists {
			return repositories.NewFieldConflictError(op, "id", nil)
		}
		if brandNameTaken(d, brand) {
			return repositories.NewFieldConflictError(op, "name", nil)
		}
		d.brands[brand.ID] = brand
		return nil
	})
}

func (r brandRepository) Update(ctx context.Context, brand domain.Brand) error {
	const op = "brands.update"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.brands[brand.ID]; !exists {
			return notFound(op, "brand", brand.ID)
		}
		if brandNameTaken(d, brand) {
			return repositories.NewFieldConflictError(op, "name", nil)
		}
		d.brands[brand.ID] = brand
		return nil
	})
}

func brandNameTaken(d *dataset, brand domain.Brand) bool {
	for id, other := range d.brands {
		if id != brand.ID && other.Name == brand.Name {
			return true
		}
	}
	return false
}

func (r brandRepository) Delete(ctx context.Context, brandID string) error {
	const op = "brands.delete"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.brands[brandID]; !exists {
			return notFound(op, "brand", brandID)
		}
		for _, product := range d.products {
			if product.BrandID != nil && *product.BrandID == brandID {
				return repositories.NewFieldConflictError(op, "brand_id", nil)
			}
		}
		delete(d.brands, brandID)
		return nil
	})
}

func (r brandRepository) FindByID(_ context.Context, brandID string) (domain.Brand, error) {
	const op = "brands.find"
	var brand domain.Brand
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.brands[brandID]
		if !ok {
			return notFound(op, "brand", brandID)
		}
		brand = found
		return nil
	})
	return brand, err
}

func (r brandRepository) List(_ context.Context, filter repositories.BrandListFilter) (domain.CursorPage[domain.Brand], error) {
	const op = "brands.list"
	var matched []domain.Brand
	err := r.s.read(op, func(d *dataset) error {
		for _, brand := range d.brands {
			if filter.IsActive != nil && brand.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != nil && !containsFold(brand.Name, *filter.Search) {
				continue
			}
			matched = append(matched, brand)
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Brand]{}, err
	}
	slices.SortFunc(matched, func(a, b domain.Brand) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return paginate(op, matched, filter.Pagination)
}

type productRepository struct{ s *Store }

func (r productRepository) Insert(ctx context.Context, product domain.Product) error {
	const op = "products.insert"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.products[product.ID]; exists {
			return repositories.NewFieldConflictError(op, "id", nil)
		}
		if err := checkProductRow(op, d, product); err != nil {
			return err
		}
		d.products[product.ID] = storedProduct(product)
		return nil
	})
}

func (r productRepository) Update(ctx context.Context, product domain.Product) error {
	const op = "products.update"
	return r.s.write(ctx, op, func(d *dataset) error {
		existing, exists := d.products[product.ID]
		if !exists {
			return notFound(op, "product", product.ID)
		}
		product.SKU = existing.SKU
		product.CreatedAt = existing.CreatedAt
		if err := checkProductRow(op, d, product); err != nil {
			return err
		}
		d.products[product.ID] = storedProduct(product)
		return nil
	})
}

func checkProductRow(op string, d *dataset, product domain.Product) error {
	if _, ok := d.categories[product.CategoryID]; !ok {
		return repositories.NewFieldConflictError(op, "category_id", nil)
	}
	if product.BrandID != nil {
		if _, ok := d.brands[*product.BrandID]; !ok {
			return repositories.NewFieldConflictError(op, "brand_id", nil)
		}
	}
	for id, other := range d.products {
		if id == product.ID {
			continue
		}
		if other.SKU == product.SKU {
			return repositories.NewFieldConflictError(op, "sku", nil)
		}
		if other.Slug == product.Slug {
			return repositories.NewFieldConflictError(op, "slug", nil)
		}
	}
	return nil
}

// Delete cascades to variants and detaches order items, which keep their snapshot.
func (r productRepository) Delete(ctx context.Context, productID string) error {
	const op = "products.delete"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.products[productID]; !exists {
			return notFound(op, "product", productID)
		}
		removed := map[string]struct{}{}
		for id, variant := range d.variants {
			if variant.ProductID == productID {
				removed[id] = struct{}{}
				delete(d.variants, id)
			}
		}
		delete(d.products, productID)
		detachOrderItems(d, func(item domain.OrderItem) domain.OrderItem {
			if item.ProductID != nil && *item.ProductID == productID {
				item.ProductID = nil
			}
			if item.VariantID != nil {
				if _, gone := removed[*item.VariantID]; gone {
					item.VariantID = nil
				}
			}
			return item
		})
		return nil
	})
}

func (r productRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	const op = "products.find"
	var product domain.Product
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.products[productID]
		if !ok {
			return notFound(op, "product", productID)
		}
		product = storedProduct(found)
		return nil
	})
	return product, err
}

func (r productRepository) List(_ context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	const op = "products.list"
	var matched []domain.Product
	err := r.s.read(op, func(d *dataset) error {
		for _, product := range d.products {
			if productMatches(product, filter) {
				matched = append(matched, storedProduct(product))
			}
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	slices.SortFunc(matched, func(a, b domain.Product) int {
		var c int
		switch filter.Sort {
		case domain.ProductSortName:
			c = cmp.Compare(a.Name, b.Name)
		case domain.ProductSortPrice:
			c = cmp.Compare(a.Price, b.Price)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		c = cmp.Or(c, cmp.Compare(a.ID, b.ID))
		if filter.Order != domain.SortAsc {
			c = -c
		}
		return c
	})
	return paginate(op, matched, filter.Pagination)
}

func productMatches(product domain.Product, filter repositories.ProductListFilter) bool {
	switch {
	case filter.CategoryID != nil && product.CategoryID != *filter.CategoryID:
		return false
	case filter.BrandID != nil && (product.BrandID == nil || *product.BrandID != *filter.BrandID):
		return false
	case filter.Available != nil && product.Available != *filter.Available:
		return false
	case filter.PriceRange.From != nil && product.Price < *filter.PriceRange.From:
		return false
	case filter.PriceRange.To != nil && product.Price > *filter.PriceRange.To:
		return false
	}
	if filter.Search != nil {
		q := *filter.Search
		return containsFold(product.Name, q) || containsFold(product.Description, q) || containsFold(product.SKU, q)
	}
	return true
}

func (r productRepository) CountByBrand(_ context.Context, brandID string) (int, error) {
	count := 0
	err := r.s.read("products.count_by_brand", func(d *dataset) error {
		for _, product := range d.products {
			if product.BrandID != nil && *product.BrandID == brandID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r productRepository) CountByCategory(_ context.Context, categoryID string) (int, error) {
	count := 0
	err := r.s.read("products.count_by_category", func(d *dataset) error {
		for _, product := range d.products {
			if product.CategoryID == categoryID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func storedProduct(product domain.Product) domain.Product {
	product.Images = slices.Clone(product.Images)
	product.Tags = slices.Clone(product.Tags)
	product.Variants = nil
	if product.Dimensions != nil {
		dims := *product.Dimensions
		product.Dimensions = &dims
	}
	return product
}

type variantRepository struct{ s *Store }

func (r variantRepository) Insert(ctx context.Context, variant domain.ProductVariant) error {
	const op = "variants.insert"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.variants[variant.ID]; exists {
			return repositories.NewFieldConflictError(op, "id", nil)
		}
		if err := checkVariantRow(op, d, variant); err != nil {
			return err
		}
		d.variants[variant.ID] = storedVariant(variant)
		return nil
	})
}

func (r variantRepository) Update(ctx context.Context, variant domain.ProductVariant) error {
	const op = "variants.update"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.variants[variant.ID]; !exists {
			return notFound(op, "variant", variant.ID)
		}
		if err := checkVariantRow(op, d, variant); err != nil {
			return err
		}
		d.variants[variant.ID] = storedVariant(variant)
		return nil
	})
}

func checkVariantRow(op string, d *dataset, variant domain.ProductVariant) error {
	if _, ok := d.products[variant.ProductID]; !ok {
		return repositories.NewFieldConflictError(op, "product_id", nil)
	}
	for id, other := range d.variants {
		if id != variant.ID && other.ProductID == variant.ProductID && other.Key() == variant.Key() {
			return repositories.NewFieldConflictError(op, "variant", nil)
		}
	}
	return nil
}

func (r variantRepository) Delete(ctx context.Context, variantID string) error {
	const op = "variants.delete"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.variants[variantID]; !exists {
			return notFound(op, "variant", variantID)
		}
		delete(d.variants, variantID)
		detachOrderItems(d, func(item domain.OrderItem) domain.OrderItem {
			if item.VariantID != nil && *item.VariantID == variantID {
				item.VariantID = nil
			}
			return item
		})
		return nil
	})
}

func (r variantRepository) FindByID(_ context.Context, variantID string) (domain.ProductVariant, error) {
	const op = "variants.find"
	var variant domain.ProductVariant
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.variants[variantID]
		if !ok {
			return notFound(op, "variant", variantID)
		}
		variant = storedVariant(found)
		return nil
	})
	return variant, err
}

func (r variantRepository) ListByProduct(_ context.Context, productID string, activeOnly bool) ([]domain.ProductVariant, error) {
	out := []domain.ProductVariant{}
	err := r.s.read("variants.list", func(d *dataset) error {
		for _, variant := range d.variants {
			if variant.ProductID != productID || (activeOnly && !variant.IsActive) {
				continue
			}
			out = append(out, storedVariant(variant))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.ProductVariant) int {
		return cmp.Or(cmp.Compare(a.Size, b.Size), cmp.Compare(a.Color, b.Color), cmp.Compare(a.ID, b.ID))
	})
	return out, err
}

func storedVariant(variant domain.ProductVariant) domain.ProductVariant {
	variant.Images = slices.Clone(variant.Images)
	if variant.Images == nil {
		variant.Images = []string{}
	}
	return variant
}

func detachOrderItems(d *dataset, fn func(domain.OrderItem) domain.OrderItem) {
	for id, order := range d.orders {
		items := make([]domain.OrderItem, len(order.Items))
		for i, item := range order.Items {
			items[i] = fn(item)
		}
		order.Items = items
		d.orders[id] = order
	}
}
