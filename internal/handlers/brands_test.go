package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/services"
)

type stubBrandService struct {
	listFn   func(ctx context.Context, filter services.BrandListFilter) (domain.CursorPage[services.Brand], error)
	getFn    func(ctx context.Context, id string) (services.Brand, error)
	createFn func(ctx context.Context, cmd services.UpsertBrandCommand) (services.Brand, error)
	updateFn func(ctx context.Context, id string, cmd services.UpsertBrandCommand) (services.Brand, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubBrandService) List(ctx context.Context, filter services.BrandListFilter) (domain.CursorPage[services.Brand], error) {
	return s.listFn(ctx, filter)
}

func (s *stubBrandService) Get(ctx context.Context, id string) (services.Brand, error) {
	return s.getFn(ctx, id)
}

func (s *stubBrandService) Create(ctx context.Context, cmd services.UpsertBrandCommand) (services.Brand, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubBrandService) Update(ctx context.Context, id string, cmd services.UpsertBrandCommand) (services.Brand, error) {
	return s.updateFn(ctx, id, cmd)
}

func (s *stubBrandService) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func TestBrandHandlers_ListFilters(t *testing.T) {
	var got services.BrandListFilter
	svc := &stubBrandService{
		listFn: func(_ context.Context, filter services.BrandListFilter) (domain.CursorPage[services.Brand], error) {
			got = filter
			return domain.CursorPage[services.Brand]{
				Items:         []services.Brand{{ID: "brd_1", Name: "Acme", Slug: "acme", IsActive: true}},
				NextPageToken: "next",
			}, nil
		},
	}

	rr := serve(t, NewBrandHandlers(svc, 20).Routes, http.MethodGet, "/?isActive=true&search=ac&pageSize=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.IsActive == nil || !*got.IsActive || got.Search == nil || *got.Search != "ac" || got.Pagination.PageSize != 5 {
		t.Fatalf("unexpected filter %+v", got)
	}
	if body := decodeJSON(t, rr); body["nextPageToken"] != "next" {
		t.Fatalf("expected next page token, got %v", body["nextPageToken"])
	}
}

func TestBrandHandlers_ListRejectsBadPageToken(t *testing.T) {
	svc := &stubBrandService{}
	rr := serve(t, NewBrandHandlers(svc, 20).Routes, http.MethodGet, "/?pageToken=not*a*token", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if names := fieldNames(t, decodeJSON(t, rr)); len(names) != 1 || names[0] != "pageToken" {
		t.Fatalf("expected pageToken field error, got %v", names)
	}

	rr = serve(t, NewBrandHandlers(svc, 20).Routes, http.MethodGet, "/?pageSize=-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if names := fieldNames(t, decodeJSON(t, rr)); len(names) != 1 || names[0] != "pageSize" {
		t.Fatalf("expected pageSize field error, got %v", names)
	}
}

func TestBrandHandlers_CreateValidationDetails(t *testing.T) {
	svc := &stubBrandService{
		createFn: func(context.Context, services.UpsertBrandCommand) (services.Brand, error) {
			return services.Brand{}, fmt.Errorf("%w: %w", services.ErrBrandInvalidInput, &services.ValidationError{
				Fields: []services.FieldViolation{{Field: "name", Rule: "min", Message: "must contain at least 2"}},
			})
		},
	}

	rr := serve(t, NewBrandHandlers(svc, 0).Routes, http.MethodPost, "/", `{"name":"A"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["error"] != "invalid_request" {
		t.Fatalf("unexpected code %v", body["error"])
	}
	if names := fieldNames(t, body); len(names) != 1 || names[0] != "name" {
		t.Fatalf("unexpected field detail %v", names)
	}
}

func TestBrandHandlers_DeleteInUseIsConflict(t *testing.T) {
	svc := &stubBrandService{
		deleteFn: func(context.Context, string) error { return services.ErrBrandInUse },
	}
	rr := serve(t, NewBrandHandlers(svc, 0).Routes, http.MethodDelete, "/brd_1", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if body := decodeJSON(t, rr); body["error"] != "brand_in_use" {
		t.Fatalf("unexpected code %v", body["error"])
	}
}

func TestBrandHandlers_DuplicateNameIsConflict(t *testing.T) {
	svc := &stubBrandService{
		createFn: func(context.Context, services.UpsertBrandCommand) (services.Brand, error) {
			return services.Brand{}, services.ErrBrandConflict
		},
	}
	rr := serve(t, NewBrandHandlers(svc, 0).Routes, http.MethodPost, "/", `{"name":"Acme"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
