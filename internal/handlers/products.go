package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/httpx"
	"github.com/boutique-admin/api/internal/services"
)

// ProductHandlers exposes product and variant endpoints.
type ProductHandlers struct {
	products services.ProductService
	currency domain.Currency
	pageSize int
}

// NewProductHandlers constructs product handlers. Prices are rendered in currency.
func NewProductHandlers(products services.ProductService, currency domain.Currency, pageSize int) *ProductHandlers {
	if currency.Code == "" {
		currency = domain.MustCurrency(domain.DefaultCurrency)
	}
	return &ProductHandlers{products: products, currency: currency, pageSize: pageSize}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/search", h.searchProducts)
	r.Post("/", h.createProduct)
	r.Get("/{productID}", h.getProduct)
	r.Put("/{productID}", h.updateProduct)
	r.Delete("/{productID}", h.deleteProduct)
	r.Get("/{productID}/variants", h.listVariants)
}

type variantRequest struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity *int   `json:"quantity"`
}

type dimensionsPayload struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (d *dimensionsPayload) toModel() *services.Dimensions {
	if d == nil {
		return nil
	}
	return &services.Dimensions{Length: d.Length, Width: d.Width, Height: d.Height}
}

type createProductRequest struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	ShortDescription *string            `json:"shortDescription"`
	Price            decimal.Decimal    `json:"price"`
	ComparePrice     *decimal.Decimal   `json:"comparePrice"`
	CategoryID       string             `json:"categoryId"`
	SubcategoryID    *string            `json:"subcategoryId"`
	BrandID          *string            `json:"brandId"`
	Stock            *int               `json:"stock"`
	Available        *bool              `json:"available"`
	Images           []string           `json:"images"`
	Variants         []variantRequest   `json:"variants"`
	Featured         bool               `json:"featured"`
	IsNewIn          bool               `json:"isNewIn"`
	Tags             []string           `json:"tags"`
	MetaTitle        *string            `json:"metaTitle"`
	MetaDescription  *string            `json:"metaDescription"`
	Weight           *float64           `json:"weight"`
	Dimensions       *dimensionsPayload `json:"dimensions"`
}

// updateProductRequest accepts the read-only identity fields a client may echo
// back; they are ignored.
type updateProductRequest struct {
	ID               string             `json:"id"`
	SKU              string             `json:"sku"`
	Slug             string             `json:"slug"`
	Name             *string            `json:"name"`
	Description      *string            `json:"description"`
	ShortDescription *string            `json:"shortDescription"`
	Price            *decimal.Decimal   `json:"price"`
	ComparePrice     *decimal.Decimal   `json:"comparePrice"`
	CategoryID       *string            `json:"categoryId"`
	SubcategoryID    *string            `json:"subcategoryId"`
	BrandID          *string            `json:"brandId"`
	Stock            *int               `json:"stock"`
	Available        *bool              `json:"available"`
	Images           []string           `json:"images"`
	Variants         []variantRequest   `json:"variants"`
	Featured         *bool              `json:"featured"`
	IsNewIn          *bool              `json:"isNewIn"`
	Tags             []string           `json:"tags"`
	MetaTitle        *string            `json:"metaTitle"`
	MetaDescription  *string            `json:"metaDescription"`
	Weight           *float64           `json:"weight"`
	Dimensions       *dimensionsPayload `json:"dimensions"`
}

func toVariantInputs(variants []variantRequest) []services.VariantInput {
	if len(variants) == 0 {
		return nil
	}
	inputs := make([]services.VariantInput, 0, len(variants))
	for _, v := range variants {
		inputs = append(inputs, services.VariantInput{Size: v.Size, Color: v.Color, Quantity: v.Quantity})
	}
	return inputs
}

func (req createProductRequest) toCommand() services.CreateProductCommand {
	return services.CreateProductCommand{
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Price:            req.Price,
		ComparePrice:     req.ComparePrice,
		CategoryID:       strings.TrimSpace(req.CategoryID),
		SubcategoryID:    req.SubcategoryID,
		BrandID:          req.BrandID,
		Stock:            req.Stock,
		Available:        req.Available,
		Images:           req.Images,
		Variants:         toVariantInputs(req.Variants),
		Featured:         req.Featured,
		IsNewIn:          req.IsNewIn,
		Tags:             req.Tags,
		MetaTitle:        req.MetaTitle,
		MetaDescription:  req.MetaDescription,
		Weight:           req.Weight,
		Dimensions:       req.Dimensions.toModel(),
	}
}

func (req updateProductRequest) toCommand(productID string) services.UpdateProductCommand {
	return services.UpdateProductCommand{
		ProductID:        productID,
		Name:             req.Name,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Price:            req.Price,
		ComparePrice:     req.ComparePrice,
		CategoryID:       req.CategoryID,
		SubcategoryID:    req.SubcategoryID,
		BrandID:          req.BrandID,
		Stock:            req.Stock,
		Available:        req.Available,
		Images:           req.Images,
		Variants:         toVariantInputs(req.Variants),
		Featured:         req.Featured,
		IsNewIn:          req.IsNewIn,
		Tags:             req.Tags,
		MetaTitle:        req.MetaTitle,
		MetaDescription:  req.MetaDescription,
		Weight:           req.Weight,
		Dimensions:       req.Dimensions.toModel(),
	}
}

type variantPayload struct {
	ID        string       `json:"id"`
	ProductID string       `json:"productId"`
	Size      string       `json:"size"`
	Color     string       `json:"color"`
	ColorHex  string       `json:"colorHex"`
	SKU       string       `json:"sku"`
	Stock     int          `json:"stock"`
	Price     *json.Number `json:"price"`
	Images    []string     `json:"images"`
	IsActive  bool         `json:"isActive"`
}

type variantStatsPayload struct {
	TotalStock      int      `json:"totalStock"`
	AvailableSizes  []string `json:"availableSizes"`
	AvailableColors []string `json:"availableColors"`
}

type productPayload struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Slug             string               `json:"slug"`
	SKU              string               `json:"sku"`
	Description      string               `json:"description"`
	DescriptionHTML  string               `json:"descriptionHtml,omitempty"`
	ShortDescription *string              `json:"shortDescription,omitempty"`
	Price            json.Number          `json:"price"`
	ComparePrice     *json.Number         `json:"comparePrice,omitempty"`
	Stock            int                  `json:"stock"`
	Images           []string             `json:"images"`
	CategoryID       string               `json:"categoryId"`
	BrandID          *string              `json:"brandId"`
	Available        bool                 `json:"available"`
	Featured         bool                 `json:"featured"`
	IsNewIn          bool                 `json:"isNewIn"`
	Tags             []string             `json:"tags"`
	MetaTitle        *string              `json:"metaTitle,omitempty"`
	MetaDescription  *string              `json:"metaDescription,omitempty"`
	Weight           *float64             `json:"weight,omitempty"`
	Dimensions       *dimensionsPayload   `json:"dimensions,omitempty"`
	Variants         []variantPayload     `json:"variants,omitempty"`
	Stats            *variantStatsPayload `json:"stats,omitempty"`
	Category         *categoryPayload     `json:"category,omitempty"`
	Brand            *brandPayload        `json:"brand,omitempty"`
	CreatedAt        string               `json:"createdAt,omitempty"`
	UpdatedAt        string               `json:"updatedAt,omitempty"`
}

func (h *ProductHandlers) buildVariantPayload(v services.ProductVariant) variantPayload {
	return variantPayload{
		ID:        v.ID,
		ProductID: v.ProductID,
		Size:      v.Size,
		Color:     v.Color,
		ColorHex:  v.ColorHex,
		SKU:       v.SKU,
		Stock:     v.Stock,
		Price:     optionalMoney(h.currency, v.Price),
		Images:    nonNilStrings(v.Images),
		IsActive:  v.IsActive,
	}
}

func (h *ProductHandlers) buildProductPayload(p services.Product) productPayload {
	payload := productPayload{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		SKU:              p.SKU,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		Price:            money(h.currency, p.Price),
		ComparePrice:     optionalMoney(h.currency, p.ComparePrice),
		Stock:            p.Stock,
		Images:           nonNilStrings(p.Images),
		CategoryID:       p.CategoryID,
		BrandID:          p.BrandID,
		Available:        p.Available,
		Featured:         p.Featured,
		IsNewIn:          p.IsNewIn,
		Tags:             nonNilStrings(p.Tags),
		MetaTitle:        p.MetaTitle,
		MetaDescription:  p.MetaDescription,
		Weight:           p.Weight,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
	if p.Dimensions != nil {
		payload.Dimensions = &dimensionsPayload{Length: p.Dimensions.Length, Width: p.Dimensions.Width, Height: p.Dimensions.Height}
	}
	if len(p.Variants) > 0 {
		payload.Variants = make([]variantPayload, 0, len(p.Variants))
		for _, v := range p.Variants {
			payload.Variants = append(payload.Variants, h.buildVariantPayload(v))
		}
	}
	return payload
}

func (h *ProductHandlers) buildProductDetail(detail services.ProductDetail) productPayload {
	payload := h.buildProductPayload(detail.Product)
	payload.DescriptionHTML = detail.DescriptionHTML
	payload.Stats = &variantStatsPayload{
		TotalStock:      detail.Stats.TotalStock,
		AvailableSizes:  nonNilStrings(detail.Stats.AvailableSizes),
		AvailableColors: nonNilStrings(detail.Stats.AvailableColors),
	}
	if detail.Category != nil {
		category := buildCategoryPayload(*detail.Category)
		payload.Category = &category
	}
	if detail.Brand != nil {
		brand := buildBrandPayload(*detail.Brand)
		payload.Brand = &brand
	}
	return payload
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}

	page, err := pageParams(r, h.pageSize)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	available, err := parseBoolParam(query.Get("available"))
	if err != nil {
		writeQueryError(ctx, w, "available", err)
		return
	}

	result, err := h.products.List(ctx, services.ProductListFilter{
		CategoryID: optionalQuery(query.Get("categoryId")),
		Available:  available,
		Search:     optionalQuery(query.Get("search")),
		Pagination: page,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	h.writeProductPage(w, result)
}

func (h *ProductHandlers) searchProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}

	page, err := pageParams(r, h.pageSize)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	available, err := parseBoolParam(query.Get("available"))
	if err != nil {
		writeQueryError(ctx, w, "available", err)
		return
	}
	minPrice, err := parseDecimalParam(query.Get("minPrice"))
	if err != nil {
		writeQueryError(ctx, w, "minPrice", err)
		return
	}
	maxPrice, err := parseDecimalParam(query.Get("maxPrice"))
	if err != nil {
		writeQueryError(ctx, w, "maxPrice", err)
		return
	}

	result, err := h.products.Search(ctx, services.ProductSearchFilter{
		Query:      strings.TrimSpace(firstNonEmpty(query.Get("q"), query.Get("query"))),
		CategoryID: optionalQuery(query.Get("categoryId")),
		BrandID:    optionalQuery(query.Get("brandId")),
		Available:  available,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		SortBy:     domain.ProductSort(strings.TrimSpace(query.Get("sortBy"))),
		SortOrder:  services.SortOrder(strings.ToLower(strings.TrimSpace(query.Get("sortOrder")))),
		Pagination: page,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	h.writeProductPage(w, result)
}

func (h *ProductHandlers) writeProductPage(w http.ResponseWriter, page domain.CursorPage[services.Product]) {
	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, h.buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, listResponse[productPayload]{Items: items, NextPageToken: page.NextPageToken})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	detail, err := h.products.Get(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildProductDetail(detail))
}

func (h *ProductHandlers) listVariants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	variants, err := h.products.Variants(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	items := make([]variantPayload, 0, len(variants))
	for _, v := range variants {
		items = append(items, h.buildVariantPayload(v))
	}
	writeJSONResponse(w, http.StatusOK, listResponse[variantPayload]{Items: items})
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	var req createProductRequest
	if err := decodeBody(r, maxRequestBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	detail, err := h.products.Create(ctx, req.toCommand())
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, h.buildProductDetail(detail))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	var req updateProductRequest
	if err := decodeBody(r, maxRequestBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	detail, err := h.products.Update(ctx, req.toCommand(productID))
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildProductDetail(detail))
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if err := h.products.Delete(ctx, productID); err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, deleteResponse{ID: productID, Deleted: true})
}

func parseDecimalParam(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.New("must be a decimal number")
	}
	return &value, nil
}

func writeQueryError(ctx context.Context, w http.ResponseWriter, field string, err error) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", field+" "+err.Error(), http.StatusBadRequest).
		WithFieldErrors([]httpx.FieldError{{Field: field, Rule: "format", Message: err.Error()}}))
}

func writeProductError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductInvalidInput):
		writeValidationError(ctx, w, err)
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrProductBrandNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("brand_not_found", "brand not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrProductConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", "a product with this slug or sku already exists", http.StatusConflict))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "product store unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "product_error", "failed to process product request", err)
	}
}
