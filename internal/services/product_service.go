package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/textutil"
	"github.com/boutique-admin/api/internal/repositories"
)

const maxProductSKUAttempts = 3

var (
	// ErrProductInvalidInput indicates the caller supplied invalid product data.
	ErrProductInvalidInput = errors.New("product: invalid input")
	// ErrProductNotFound indicates the addressed product does not exist.
	ErrProductNotFound = errors.New("product: not found")
	// ErrProductConflict indicates a duplicate slug or sku.
	ErrProductConflict = errors.New("product: conflict")
	// ErrProductCategoryNotFound indicates the resolved category does not exist.
	ErrProductCategoryNotFound = errors.New("product: category not found")
	// ErrProductBrandNotFound indicates the referenced brand does not exist.
	ErrProductBrandNotFound = errors.New("product: brand not found")
	// ErrProductUnavailable indicates the backing store could not be reached.
	ErrProductUnavailable = errors.New("product: repository unavailable")
)

var productSortFields = map[domain.ProductSort]struct{}{
	domain.ProductSortCreatedAt: {},
	domain.ProductSortName:      {},
	domain.ProductSortPrice:     {},
}

// ProductServiceDeps bundles constructor inputs for the product service.
type ProductServiceDeps struct {
	Products   repositories.ProductRepository
	Variants   repositories.VariantRepository
	Categories repositories.CategoryRepository
	Brands     repositories.BrandRepository
	UnitOfWork repositories.UnitOfWork
	Currency   domain.Currency
	IDs        IdentifierGenerator
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)

	// StrictSubcategory requires a supplied subcategory to be a child of the supplied category.
	StrictSubcategory bool
}

type productService struct {
	products   repositories.ProductRepository
	variants   repositories.VariantRepository
	categories repositories.CategoryRepository
	brands     repositories.BrandRepository
	unitOfWork repositories.UnitOfWork
	currency   domain.Currency
	ids        IdentifierGenerator
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
	resolver   CategoryResolver
}

// NewProductService constructs the product service with the supplied dependencies.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	switch {
	case deps.Products == nil:
		return nil, errors.New("product service: product repository is required")
	case deps.Variants == nil:
		return nil, errors.New("product service: variant repository is required")
	case deps.Categories == nil:
		return nil, errors.New("product service: category repository is required")
	case deps.Brands == nil:
		return nil, errors.New("product service: brand repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := deps.IDs
	if ids == nil {
		ids = NewIdentifierGenerator(clock, nil)
	}
	cur := deps.Currency
	if cur.Code == "" {
		cur = domain.MustCurrency(domain.DefaultCurrency)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &productService{
		products:   deps.Products,
		variants:   deps.Variants,
		categories: deps.Categories,
		brands:     deps.Brands,
		unitOfWork: unit,
		currency:   cur,
		ids:        ids,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
		resolver:   CategoryResolver{Categories: deps.Categories, Strict: deps.StrictSubcategory},
	}, nil
}

func (s *productService) List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		CategoryID: normalizeFilterPointer(filter.CategoryID),
		Available:  filter.Available,
		Search:     normalizeFilterPointer(filter.Search),
		Sort:       domain.ProductSortCreatedAt,
		Order:      domain.SortDesc,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	if err := s.attachVariants(ctx, page.Items); err != nil {
		return domain.CursorPage[Product]{}, err
	}
	return page, nil
}

func (s *productService) Search(ctx context.Context, filter ProductSearchFilter) (domain.CursorPage[Product], error) {
	v := newViolations(ErrProductInvalidInput)
	query := strings.TrimSpace(filter.Query)
	if query == "" {
		v.add("q", "required", "is required")
	}
	priceRange := domain.RangeQuery[int64]{
		From: v.optionalAmount(s.currency, "minPrice", filter.MinPrice, nonNegativeAmount),
		To:   v.optionalAmount(s.currency, "maxPrice", filter.MaxPrice, nonNegativeAmount),
	}
	if priceRange.From != nil && priceRange.To != nil && *priceRange.From > *priceRange.To {
		v.add("minPrice", "range", "must not exceed maxPrice")
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = domain.ProductSortCreatedAt
	}
	if _, ok := productSortFields[sortBy]; !ok {
		v.add("sortBy", "oneof", "must be one of [name price createdAt]")
	}
	order := normalizeSortOrder(filter.SortOrder)
	if err := v.err(); err != nil {
		return domain.CursorPage[Product]{}, err
	}

	page, err := s.products.List(ctx, repositories.ProductListFilter{
		CategoryID: normalizeFilterPointer(filter.CategoryID),
		BrandID:    normalizeFilterPointer(filter.BrandID),
		Available:  filter.Available,
		Search:     &query,
		PriceRange: priceRange,
		Sort:       sortBy,
		Order:      order,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	if err := s.attachVariants(ctx, page.Items); err != nil {
		return domain.CursorPage[Product]{}, err
	}
	return page, nil
}

func (s *productService) Get(ctx context.Context, productID string) (ProductDetail, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductDetail{}, fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return ProductDetail{}, s.mapRepositoryError(err)
	}
	return s.detail(ctx, product)
}

func (s *productService) Variants(ctx context.Context, productID string) ([]ProductVariant, error) {
	productID = strings.TrimSpace(productID)
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, s.mapRepositoryError(err)
	}
	variants, err := s.variants.ListByProduct(ctx, productID, false)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return variants, nil
}

func (s *productService) Create(ctx context.Context, cmd CreateProductCommand) (ProductDetail, error) {
	v := newViolations(ErrProductInvalidInput)
	v.check(cmd)
	price := v.amount(s.currency, "price", cmd.Price, productPriceRange)
	comparePrice := v.optionalAmount(s.currency, "comparePrice", cmd.ComparePrice, amountBounds{min: &decimalZero, max: &decimalMaxPrice})
	checkDimensions(v, cmd.Dimensions)
	checkVariantMatrix(v, cmd.Variants)
	if err := v.err(); err != nil {
		return ProductDetail{}, err
	}

	category, err := s.resolveCategory(ctx, cmd.CategoryID, cmd.SubcategoryID)
	if err != nil {
		return ProductDetail{}, err
	}
	brand, err := s.resolveBrand(ctx, cmd.BrandID)
	if err != nil {
		return ProductDetail{}, err
	}

	now := s.clock()
	name := strings.TrimSpace(cmd.Name)
	product := Product{
		ID:               s.ids.NewID(productIDPrefix),
		Name:             name,
		Slug:             Slugify(name),
		Description:      strings.TrimSpace(cmd.Description),
		ShortDescription: trimmedOptional(cmd.ShortDescription),
		Price:            price,
		ComparePrice:     comparePrice,
		Images:           trimStrings(cmd.Images),
		CategoryID:       category.ID,
		Available:        true,
		Featured:         cmd.Featured,
		IsNewIn:          cmd.IsNewIn,
		Tags:             textutil.NormalizeTags(cmd.Tags),
		MetaTitle:        trimmedOptional(cmd.MetaTitle),
		MetaDescription:  trimmedOptional(cmd.MetaDescription),
		Weight:           cmd.Weight,
		Dimensions:       cmd.Dimensions,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if brand != nil {
		product.BrandID = valuePtr(brand.ID)
	}
	if cmd.Stock != nil {
		product.Stock = *cmd.Stock
	}
	if cmd.Available != nil {
		product.Available = *cmd.Available
	}

	var lastErr error
	for attempt := 1; attempt <= maxProductSKUAttempts; attempt++ {
		product.SKU = s.ids.ProductSKU(product.Name)
		variants, err := BuildVariants(product, cmd.Variants, s.ids, now)
		if err != nil {
			return ProductDetail{}, err
		}
		lastErr = s.runInTx(ctx, func(txCtx context.Context) error {
			if err := s.products.Insert(txCtx, product); err != nil {
				return err
			}
			for _, variant := range variants {
				if err := s.variants.Insert(txCtx, variant); err != nil {
					return err
				}
			}
			return nil
		})
		if lastErr == nil {
			product.Variants = variants
			break
		}
		if repositories.ConflictField(lastErr) != "sku" {
			return ProductDetail{}, s.mapRepositoryError(lastErr)
		}
		s.logger(ctx, "product.sku.conflict", map[string]any{"sku": product.SKU, "attempt": attempt})
	}
	if lastErr != nil {
		return ProductDetail{}, fmt.Errorf("%w: sku could not be allocated: %v", ErrProductConflict, lastErr)
	}

	s.logger(ctx, "product.created", map[string]any{
		"productId": product.ID,
		"sku":       product.SKU,
		"variants":  len(product.Variants),
	})
	return s.assemble(product, activeVariants(product.Variants), &category, brand)
}

func (s *productService) Update(ctx context.Context, cmd UpdateProductCommand) (ProductDetail, error) {
	v := newViolations(ErrProductInvalidInput)
	v.check(cmd)
	price := v.optionalAmount(s.currency, "price", cmd.Price, productPriceRange)
	comparePrice := v.optionalAmount(s.currency, "comparePrice", cmd.ComparePrice, amountBounds{min: &decimalZero, max: &decimalMaxPrice})
	checkDimensions(v, cmd.Dimensions)
	checkVariantMatrix(v, cmd.Variants)
	if s.resolver.Strict && cmd.SubcategoryID != nil && cmd.CategoryID == nil {
		v.add("categoryId", "required_with", "is required when subcategoryId is supplied")
	}
	if err := v.err(); err != nil {
		return ProductDetail{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)
	existing, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return ProductDetail{}, s.mapRepositoryError(err)
	}

	product := existing
	if cmd.CategoryID != nil || cmd.SubcategoryID != nil {
		category, err := s.resolveCategory(ctx, derefString(cmd.CategoryID), cmd.SubcategoryID)
		if err != nil {
			return ProductDetail{}, err
		}
		product.CategoryID = category.ID
	}
	if cmd.BrandID != nil {
		brand, err := s.resolveBrand(ctx, cmd.BrandID)
		if err != nil {
			return ProductDetail{}, err
		}
		product.BrandID = nil
		if brand != nil {
			product.BrandID = valuePtr(brand.ID)
		}
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name != existing.Name {
			product.Name = name
			product.Slug = Slugify(name)
		}
	}
	if cmd.Description != nil {
		product.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.ShortDescription != nil {
		product.ShortDescription = trimmedOptional(cmd.ShortDescription)
	}
	if price != nil {
		product.Price = *price
	}
	if comparePrice != nil {
		product.ComparePrice = comparePrice
	}
	if cmd.Stock != nil {
		product.Stock = *cmd.Stock
	}
	if cmd.Available != nil {
		product.Available = *cmd.Available
	}
	if len(cmd.Images) > 0 {
		product.Images = trimStrings(cmd.Images)
	}
	if cmd.Featured != nil {
		product.Featured = *cmd.Featured
	}
	if cmd.IsNewIn != nil {
		product.IsNewIn = *cmd.IsNewIn
	}
	if cmd.Tags != nil {
		product.Tags = textutil.NormalizeTags(cmd.Tags)
	}
	if cmd.MetaTitle != nil {
		product.MetaTitle = trimmedOptional(cmd.MetaTitle)
	}
	if cmd.MetaDescription != nil {
		product.MetaDescription = trimmedOptional(cmd.MetaDescription)
	}
	if cmd.Weight != nil {
		product.Weight = cmd.Weight
	}
	if cmd.Dimensions != nil {
		product.Dimensions = cmd.Dimensions
	}
	now := s.clock()
	product.UpdatedAt = now

	var plan VariantPlan
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.products.Update(txCtx, product); err != nil {
			return s.mapRepositoryError(err)
		}
		if len(cmd.Variants) == 0 {
			return nil
		}
		stored, err := s.variants.ListByProduct(txCtx, product.ID, false)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if plan, err = PlanVariantReconcile(product, stored, cmd.Variants, s.ids, now); err != nil {
			return err
		}
		return s.applyVariantPlan(txCtx, plan)
	})
	if err != nil {
		return ProductDetail{}, err
	}

	if !plan.Empty() {
		s.logger(ctx, "product.variants.reconciled", map[string]any{
			"productId": product.ID,
			"inserted":  len(plan.Insert),
			"updated":   len(plan.Update),
			"deleted":   len(plan.Delete),
		})
	}
	return s.detail(ctx, product)
}

func (s *productService) applyVariantPlan(ctx context.Context, plan VariantPlan) error {
	for _, variant := range plan.Delete {
		if err := s.variants.Delete(ctx, variant.ID); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	for _, variant := range plan.Update {
		if err := s.variants.Update(ctx, variant); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	for _, variant := range plan.Insert {
		if err := s.variants.Insert(ctx, variant); err != nil {
			return s.mapRepositoryError(err)
		}
	}
	return nil
}

func (s *productService) Delete(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}
	return s.runInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.products.FindByID(txCtx, productID); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.products.Delete(txCtx, productID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
}

func (s *productService) detail(ctx context.Context, product Product) (ProductDetail, error) {
	variants, err := s.variants.ListByProduct(ctx, product.ID, true)
	if err != nil {
		return ProductDetail{}, s.mapRepositoryError(err)
	}
	var category *Category
	if found, err := s.categories.FindByID(ctx, product.CategoryID); err == nil {
		category = &found
	} else if !isRepoNotFound(err) {
		return ProductDetail{}, s.mapRepositoryError(err)
	}
	var brand *Brand
	if product.BrandID != nil {
		if found, err := s.brands.FindByID(ctx, *product.BrandID); err == nil {
			brand = &found
		} else if !isRepoNotFound(err) {
			return ProductDetail{}, s.mapRepositoryError(err)
		}
	}
	return s.assemble(product, variants, category, brand)
}

func (s *productService) assemble(product Product, active []ProductVariant, category *Category, brand *Brand) (ProductDetail, error) {
	product.Variants = active
	descriptionHTML, err := textutil.RenderMarkdown(product.Description)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("product: render description: %w", err)
	}
	return ProductDetail{
		Product:         product,
		Category:        category,
		Brand:           brand,
		Stats:           ComputeVariantStats(active),
		DescriptionHTML: descriptionHTML,
	}, nil
}

func (s *productService) attachVariants(ctx context.Context, products []Product) error {
	for i := range products {
		variants, err := s.variants.ListByProduct(ctx, products[i].ID, false)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		products[i].Variants = variants
	}
	return nil
}

func (s *productService) resolveCategory(ctx context.Context, categoryID string, subcategoryID *string) (Category, error) {
	category, err := s.resolver.Resolve(ctx, categoryID, subcategoryID)
	switch {
	case err == nil:
		return category, nil
	case errors.Is(err, ErrCategoryUnresolved):
		return Category{}, fmt.Errorf("%w: %v", ErrProductCategoryNotFound, err)
	case errors.Is(err, ErrCategoryParentMismatch):
		v := newViolations(ErrProductInvalidInput)
		v.add("subcategoryId", "parent", "must be a subcategory of categoryId")
		return Category{}, v.err()
	default:
		return Category{}, s.mapRepositoryError(err)
	}
}

// resolveBrand returns nil for an absent or blank brand id.
func (s *productService) resolveBrand(ctx context.Context, brandID *string) (*Brand, error) {
	id := strings.TrimSpace(derefString(brandID))
	if id == "" {
		return nil, nil
	}
	brand, err := s.brands.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductBrandNotFound, id)
		}
		return nil, s.mapRepositoryError(err)
	}
	return &brand, nil
}

func (s *productService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrProductConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrProductUnavailable, err)
		}
	}
	return err
}

func (s *productService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func checkDimensions(v *violations, dims *Dimensions) {
	if dims == nil {
		return
	}
	for field, value := range map[string]float64{
		"dimensions.length": dims.Length,
		"dimensions.width":  dims.Width,
		"dimensions.height": dims.Height,
	} {
		if value < 0 {
			v.add(field, "min", "must be at least 0")
		}
	}
}

func activeVariants(variants []ProductVariant) []ProductVariant {
	active := make([]ProductVariant, 0, len(variants))
	for _, variant := range variants {
		if variant.IsActive {
			active = append(active, variant)
		}
	}
	return active
}

func normalizeSortOrder(order SortOrder) SortOrder {
	if strings.EqualFold(string(order), string(domain.SortAsc)) {
		return domain.SortAsc
	}
	return domain.SortDesc
}

func trimmedOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func trimStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
