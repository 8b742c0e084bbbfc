package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/boutique-admin/api/internal/platform/httpx"
	"github.com/boutique-admin/api/internal/services"
)

// BrandHandlers exposes brand CRUD endpoints.
type BrandHandlers struct {
	brands   services.BrandService
	pageSize int
}

// NewBrandHandlers constructs brand handlers. pageSize is the default list page size.
func NewBrandHandlers(brands services.BrandService, pageSize int) *BrandHandlers {
	return &BrandHandlers{brands: brands, pageSize: pageSize}
}

// Routes registers the /brands endpoints.
func (h *BrandHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listBrands)
	r.Post("/", h.createBrand)
	r.Get("/{brandID}", h.getBrand)
	r.Put("/{brandID}", h.updateBrand)
	r.Delete("/{brandID}", h.deleteBrand)
}

type brandRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Logo        *string `json:"logo"`
	Website     *string `json:"website"`
	IsActive    *bool   `json:"isActive"`
}

type brandPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description,omitempty"`
	Logo        *string `json:"logo,omitempty"`
	Website     *string `json:"website,omitempty"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

func buildBrandPayload(brand services.Brand) brandPayload {
	return brandPayload{
		ID:          brand.ID,
		Name:        brand.Name,
		Slug:        brand.Slug,
		Description: brand.Description,
		Logo:        brand.Logo,
		Website:     brand.Website,
		IsActive:    brand.IsActive,
		CreatedAt:   formatTime(brand.CreatedAt),
		UpdatedAt:   formatTime(brand.UpdatedAt),
	}
}

func (h *BrandHandlers) listBrands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.brands == nil {
		serviceUnavailable(ctx, w, "brand")
		return
	}

	page, err := pageParams(r, h.pageSize)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	active, err := parseBoolParam(query.Get("isActive"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "isActive "+err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.brands.List(ctx, services.BrandListFilter{
		IsActive:   active,
		Search:     optionalQuery(query.Get("search")),
		Pagination: page,
	})
	if err != nil {
		writeBrandError(ctx, w, err)
		return
	}

	items := make([]brandPayload, 0, len(result.Items))
	for _, brand := range result.Items {
		items = append(items, buildBrandPayload(brand))
	}
	writeJSONResponse(w, http.StatusOK, listResponse[brandPayload]{Items: items, NextPageToken: result.NextPageToken})
}

func (h *BrandHandlers) getBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.brands == nil {
		serviceUnavailable(ctx, w, "brand")
		return
	}
	brand, err := h.brands.Get(ctx, strings.TrimSpace(chi.URLParam(r, "brandID")))
	if err != nil {
		writeBrandError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBrandPayload(brand))
}

func (h *BrandHandlers) createBrand(w http.ResponseWriter, r *http.Request) {
	h.saveBrand(w, r, "")
}

func (h *BrandHandlers) updateBrand(w http.ResponseWriter, r *http.Request) {
	h.saveBrand(w, r, strings.TrimSpace(chi.URLParam(r, "brandID")))
}

func (h *BrandHandlers) saveBrand(w http.ResponseWriter, r *http.Request, brandID string) {
	ctx := r.Context()
	if h.brands == nil {
		serviceUnavailable(ctx, w, "brand")
		return
	}

	var req brandRequest
	if err := decodeBody(r, maxRequestBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	cmd := services.UpsertBrandCommand{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Logo:        req.Logo,
		Website:     req.Website,
		IsActive:    req.IsActive,
	}

	var (
		brand  services.Brand
		err    error
		status = http.StatusOK
	)
	if brandID == "" {
		brand, err = h.brands.Create(ctx, cmd)
		status = http.StatusCreated
	} else {
		brand, err = h.brands.Update(ctx, brandID, cmd)
	}
	if err != nil {
		writeBrandError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, buildBrandPayload(brand))
}

func (h *BrandHandlers) deleteBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.brands == nil {
		serviceUnavailable(ctx, w, "brand")
		return
	}
	brandID := strings.TrimSpace(chi.URLParam(r, "brandID"))
	if err := h.brands.Delete(ctx, brandID); err != nil {
		writeBrandError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, deleteResponse{ID: brandID, Deleted: true})
}

func writeBrandError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrBrandInvalidInput):
		writeValidationError(ctx, w, err)
	case errors.Is(err, services.ErrBrandNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("brand_not_found", "brand not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBrandConflict):
		httpx.WriteError(ctx, w, httpx.NewError("brand_conflict", "a brand with this name already exists", http.StatusConflict))
	case errors.Is(err, services.ErrBrandInUse):
		httpx.WriteError(ctx, w, httpx.NewError("brand_in_use", "brand is referenced by products", http.StatusConflict))
	case errors.Is(err, services.ErrBrandUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "brand store unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "brand_error", "failed to process brand request", err)
	}
}
