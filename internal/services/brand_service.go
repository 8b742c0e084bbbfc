package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories"
)

var (
	// ErrBrandInvalidInput indicates the caller supplied invalid brand data.
	ErrBrandInvalidInput = errors.New("brand: invalid input")
	// ErrBrandNotFound indicates the addressed brand does not exist.
	ErrBrandNotFound = errors.New("brand: not found")
	// ErrBrandConflict indicates another brand already uses the name.
	ErrBrandConflict = errors.New("brand: name already exists")
	// ErrBrandInUse indicates products still reference the brand.
	ErrBrandInUse = errors.New("brand: in use")
	// ErrBrandUnavailable indicates the backing store could not be reached.
	ErrBrandUnavailable = errors.New("brand: repository unavailable")
)

// BrandServiceDeps bundles constructor inputs for the brand service.
type BrandServiceDeps struct {
	Brands     repositories.BrandRepository
	Products   repositories.ProductRepository
	UnitOfWork repositories.UnitOfWork
	IDs        IdentifierGenerator
	Clock      func() time.Time
}

type brandService struct {
	brands     repositories.BrandRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	ids        IdentifierGenerator
	clock      func() time.Time
}

// NewBrandService constructs the brand service with the supplied dependencies.
func NewBrandService(deps BrandServiceDeps) (BrandService, error) {
	if deps.Brands == nil {
		return nil, errors.New("brand service: brand repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("brand service: product repository is required")
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
	return &brandService{
		brands:     deps.Brands,
		products:   deps.Products,
		unitOfWork: unit,
		ids:        ids,
		clock:      func() time.Time { return clock().UTC() },
	}, nil
}

func (s *brandService) List(ctx context.Context, filter BrandListFilter) (domain.CursorPage[Brand], error) {
	page, err := s.brands.List(ctx, repositories.BrandListFilter{
		IsActive: filter.IsActive,
		Search:   normalizeFilterPointer(filter.Search),
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Brand]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *brandService) Get(ctx context.Context, brandID string) (Brand, error) {
	brand, err := s.brands.FindByID(ctx, strings.TrimSpace(brandID))
	if err != nil {
		return Brand{}, s.mapRepositoryError(err)
	}
	return brand, nil
}

func (s *brandService) Create(ctx context.Context, cmd UpsertBrandCommand) (Brand, error) {
	v := newViolations(ErrBrandInvalidInput)
	v.check(cmd)
	if err := v.err(); err != nil {
		return Brand{}, err
	}

	now := s.clock()
	brand := Brand{
		ID:        s.ids.NewID(brandIDPrefix),
		IsActive:  true,
		CreatedAt: now,
	}
	applyBrandCommand(&brand, cmd, now)

	if err := s.brands.Insert(ctx, brand); err != nil {
		return Brand{}, s.mapRepositoryError(err)
	}
	return brand, nil
}

func (s *brandService) Update(ctx context.Context, brandID string, cmd UpsertBrandCommand) (Brand, error) {
	v := newViolations(ErrBrandInvalidInput)
	v.check(cmd)
	if err := v.err(); err != nil {
		return Brand{}, err
	}

	var updated Brand
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		brand, err := s.brands.FindByID(txCtx, strings.TrimSpace(brandID))
		if err != nil {
			return s.mapRepositoryError(err)
		}
		applyBrandCommand(&brand, cmd, s.clock())
		if err := s.brands.Update(txCtx, brand); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = brand
		return nil
	})
	if err != nil {
		return Brand{}, err
	}
	return updated, nil
}

func (s *brandService) Delete(ctx context.Context, brandID string) error {
	brandID = strings.TrimSpace(brandID)
	return s.runInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.brands.FindByID(txCtx, brandID); err != nil {
			return s.mapRepositoryError(err)
		}
		count, err := s.products.CountByBrand(txCtx, brandID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d products reference brand %s", ErrBrandInUse, count, brandID)
		}
		if err := s.brands.Delete(txCtx, brandID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
}

func applyBrandCommand(brand *Brand, cmd UpsertBrandCommand, now time.Time) {
	brand.Name = strings.TrimSpace(cmd.Name)
	brand.Slug = slug.Make(brand.Name)
	brand.Description = trimmedOptional(cmd.Description)
	brand.Logo = trimmedOptional(cmd.Logo)
	brand.Website = trimmedOptional(cmd.Website)
	if cmd.IsActive != nil {
		brand.IsActive = *cmd.IsActive
	}
	brand.UpdatedAt = now
}

func (s *brandService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBrandNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrBrandConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrBrandUnavailable, err)
		}
	}
	return err
}

func (s *brandService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}
