package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/services"
)

type stubProductService struct {
	listFn     func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error)
	searchFn   func(ctx context.Context, filter services.ProductSearchFilter) (domain.CursorPage[services.Product], error)
	getFn      func(ctx context.Context, id string) (services.ProductDetail, error)
	variantsFn func(ctx context.Context, id string) ([]services.ProductVariant, error)
	createFn   func(ctx context.Context, cmd services.CreateProductCommand) (services.ProductDetail, error)
	updateFn   func(ctx context.Context, cmd services.UpdateProductCommand) (services.ProductDetail, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (s *stubProductService) List(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	return s.listFn(ctx, filter)
}

func (s *stubProductService) Search(ctx context.Context, filter services.ProductSearchFilter) (domain.CursorPage[services.Product], error) {
	return s.searchFn(ctx, filter)
}

func (s *stubProductService) Get(ctx context.Context, id string) (services.ProductDetail, error) {
	return s.getFn(ctx, id)
}

func (s *stubProductService) Variants(ctx context.Context, id string) ([]services.ProductVariant, error) {
	return s.variantsFn(ctx, id)
}

func (s *stubProductService) Create(ctx context.Context, cmd services.CreateProductCommand) (services.ProductDetail, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubProductService) Update(ctx context.Context, cmd services.UpdateProductCommand) (services.ProductDetail, error) {
	return s.updateFn(ctx, cmd)
}

func (s *stubProductService) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func classicTeeDetail() services.ProductDetail {
	return services.ProductDetail{
		Product: services.Product{
			ID: "prd_1", Name: "Classic Tee", Slug: "classic-tee", SKU: "CLA-LX2K-AB12",
			Description: "A soft cotton tee", Price: 1999, Stock: 8, CategoryID: "cat_1",
			Images: []string{"https://cdn.example.com/tee.jpg"}, Available: true,
			Variants: []services.ProductVariant{
				{ID: "var_1", ProductID: "prd_1", Size: "M", Color: "blue", ColorHex: "#0000FF", SKU: "CLA-LX2K-AB12-M-BLU", Stock: 5, IsActive: true},
				{ID: "var_2", ProductID: "prd_1", Size: "L", Color: "blue", ColorHex: "#0000FF", SKU: "CLA-LX2K-AB12-L-BLU", Stock: 3, IsActive: true},
			},
		},
		Stats:           services.VariantStats{TotalStock: 8, AvailableSizes: []string{"M", "L"}, AvailableColors: []string{"blue"}},
		DescriptionHTML: "<p>A soft cotton tee</p>",
	}
}

func TestProductHandlers_CreateMapsPayload(t *testing.T) {
	var got services.CreateProductCommand
	svc := &stubProductService{
		createFn: func(_ context.Context, cmd services.CreateProductCommand) (services.ProductDetail, error) {
			got = cmd
			return classicTeeDetail(), nil
		},
	}
	body := `{
		"name": "Classic Tee",
		"description": "A soft cotton tee",
		"price": 19.99,
		"categoryId": "cat_1",
		"images": ["https://cdn.example.com/tee.jpg"],
		"variants": [{"size":"M","color":"blue","quantity":5},{"size":"L","color":"blue","quantity":3}]
	}`

	rr := serve(t, NewProductHandlers(svc, domain.MustCurrency("EUR"), 0).Routes, http.MethodPost, "/", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if !got.Price.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected price %s", got.Price)
	}
	if len(got.Variants) != 2 || got.Variants[1].Quantity == nil || *got.Variants[1].Quantity != 3 {
		t.Fatalf("unexpected variants %+v", got.Variants)
	}

	resp := decodeJSON(t, rr)
	if resp["price"] != 19.99 || resp["sku"] != "CLA-LX2K-AB12" {
		t.Fatalf("unexpected product payload %v", resp)
	}
	stats := resp["stats"].(map[string]any)
	if stats["totalStock"] != float64(8) {
		t.Fatalf("unexpected stats %v", stats)
	}
	if colors := stats["availableColors"].([]any); len(colors) != 1 || colors[0] != "blue" {
		t.Fatalf("unexpected colors %v", colors)
	}
}

func TestProductHandlers_CreateRejectsClientSKU(t *testing.T) {
	svc := &stubProductService{}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodPost, "/", `{"name":"Tee","sku":"MINE"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProductHandlers_UpdateIgnoresEchoedIdentity(t *testing.T) {
	var got services.UpdateProductCommand
	svc := &stubProductService{
		updateFn: func(_ context.Context, cmd services.UpdateProductCommand) (services.ProductDetail, error) {
			got = cmd
			return classicTeeDetail(), nil
		},
	}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodPut, "/prd_1",
		`{"id":"prd_1","sku":"OTHER","slug":"other","name":"Classic Tee V2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.ProductID != "prd_1" || got.Name == nil || *got.Name != "Classic Tee V2" {
		t.Fatalf("unexpected command %+v", got)
	}
	if got.Variants != nil {
		t.Fatalf("variants must stay untouched when omitted, got %+v", got.Variants)
	}
}

func TestProductHandlers_SearchParsesFilters(t *testing.T) {
	var got services.ProductSearchFilter
	svc := &stubProductService{
		searchFn: func(_ context.Context, filter services.ProductSearchFilter) (domain.CursorPage[services.Product], error) {
			got = filter
			return domain.CursorPage[services.Product]{}, nil
		},
	}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodGet,
		"/search?q=tee&minPrice=10&maxPrice=25.5&brandId=brd_1&sortBy=price&sortOrder=ASC", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Query != "tee" || got.BrandID == nil || *got.BrandID != "brd_1" {
		t.Fatalf("unexpected filter %+v", got)
	}
	if got.MinPrice == nil || !got.MinPrice.Equal(decimal.NewFromInt(10)) || got.MaxPrice == nil || got.MaxPrice.String() != "25.5" {
		t.Fatalf("unexpected price range %v..%v", got.MinPrice, got.MaxPrice)
	}
	if got.SortBy != domain.ProductSortPrice || got.SortOrder != domain.SortAsc {
		t.Fatalf("unexpected sort %s %s", got.SortBy, got.SortOrder)
	}
	if items := decodeJSON(t, rr)["items"].([]any); len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", items)
	}
}

func TestProductHandlers_SearchRejectsBadPrice(t *testing.T) {
	svc := &stubProductService{}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodGet, "/search?q=tee&minPrice=cheap", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if names := fieldNames(t, decodeJSON(t, rr)); len(names) != 1 || names[0] != "minPrice" {
		t.Fatalf("unexpected fields %v", names)
	}
}

func TestProductHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrProductCategoryNotFound, http.StatusBadRequest, "category_not_found"},
		{services.ErrProductBrandNotFound, http.StatusBadRequest, "brand_not_found"},
		{services.ErrProductConflict, http.StatusConflict, "product_conflict"},
		{services.ErrProductUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "product_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubProductService{
				createFn: func(context.Context, services.CreateProductCommand) (services.ProductDetail, error) {
					return services.ProductDetail{}, tc.err
				},
			}
			rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodPost, "/", `{"name":"Tee"}`)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if body := decodeJSON(t, rr); body["error"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestProductHandlers_GetMissingIs404(t *testing.T) {
	svc := &stubProductService{
		getFn: func(context.Context, string) (services.ProductDetail, error) {
			return services.ProductDetail{}, services.ErrProductNotFound
		},
	}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodGet, "/prd_missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestProductHandlers_Variants(t *testing.T) {
	svc := &stubProductService{
		variantsFn: func(context.Context, string) ([]services.ProductVariant, error) {
			return classicTeeDetail().Product.Variants, nil
		},
	}
	rr := serve(t, NewProductHandlers(svc, domain.Currency{}, 0).Routes, http.MethodGet, "/prd_1/variants", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items := decodeJSON(t, rr)["items"].([]any)
	first := items[0].(map[string]any)
	if len(items) != 2 || first["colorHex"] != "#0000FF" || first["price"] != nil {
		t.Fatalf("unexpected variants %v", items)
	}
}
