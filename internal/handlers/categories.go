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

// CategoryHandlers exposes the category tree.
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers constructs category handlers.
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// Routes registers the /categories endpoints.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Get("/{categoryID}", h.getCategory)
	r.Put("/{categoryID}", h.updateCategory)
	r.Delete("/{categoryID}", h.deleteCategory)
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ParentID    *string `json:"parentId"`
	Image       *string `json:"image"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   *int    `json:"sortOrder"`
}

func (req categoryRequest) toCommand() services.UpsertCategoryCommand {
	return services.UpsertCategoryCommand{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ParentID:    req.ParentID,
		Image:       req.Image,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	}
}

type categoryPayload struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description *string           `json:"description,omitempty"`
	ParentID    *string           `json:"parentId"`
	Image       *string           `json:"image,omitempty"`
	IsActive    bool              `json:"isActive"`
	SortOrder   int               `json:"sortOrder"`
	Children    []categoryPayload `json:"children,omitempty"`
	CreatedAt   string            `json:"createdAt,omitempty"`
	UpdatedAt   string            `json:"updatedAt,omitempty"`
}

func buildCategoryPayload(category services.Category) categoryPayload {
	payload := categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ParentID:    category.ParentID,
		Image:       category.Image,
		IsActive:    category.IsActive,
		SortOrder:   category.SortOrder,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
	if len(category.Children) > 0 {
		payload.Children = make([]categoryPayload, 0, len(category.Children))
		for _, child := range category.Children {
			payload.Children = append(payload.Children, buildCategoryPayload(child))
		}
	}
	return payload
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	tree, err := h.categories.Tree(ctx)
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}
	items := make([]categoryPayload, 0, len(tree))
	for _, category := range tree {
		items = append(items, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, listResponse[categoryPayload]{Items: items})
}

func (h *CategoryHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	category, err := h.categories.Get(ctx, strings.TrimSpace(chi.URLParam(r, "categoryID")))
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "")
}

func (h *CategoryHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, strings.TrimSpace(chi.URLParam(r, "categoryID")))
}

func (h *CategoryHandlers) saveCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}

	var req categoryRequest
	if err := decodeBody(r, maxRequestBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var (
		category services.Category
		err      error
		status   = http.StatusOK
	)
	if categoryID == "" {
		category, err = h.categories.Create(ctx, req.toCommand())
		status = http.StatusCreated
	} else {
		category, err = h.categories.Update(ctx, categoryID, req.toCommand())
	}
	if err != nil {
		writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, buildCategoryPayload(category))
}

func (h *CategoryHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if err := h.categories.Delete(ctx, categoryID); err != nil {
		writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, deleteResponse{ID: categoryID, Deleted: true})
}

func writeCategoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCategoryInvalidInput):
		writeValidationError(ctx, w, err)
	case errors.Is(err, services.ErrCategoryParentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("parent_not_found", "parent category not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCategoryConflict):
		httpx.WriteError(ctx, w, httpx.NewError("category_conflict", "a category with this name already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCategoryInUse):
		httpx.WriteError(ctx, w, httpx.NewError("category_in_use", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCategoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "category store unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "category_error", "failed to process category request", err)
	}
}
