package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/boutique-admin/api/internal/repositories"
)

var (
	// ErrCategoryInvalidInput indicates the caller supplied invalid category data.
	ErrCategoryInvalidInput = errors.New("category: invalid input")
	// ErrCategoryNotFound indicates the addressed category does not exist.
	ErrCategoryNotFound = errors.New("category: not found")
	// ErrCategoryParentNotFound indicates the requested parent category does not exist.
	ErrCategoryParentNotFound = errors.New("category: parent not found")
	// ErrCategoryConflict indicates a sibling already uses the name.
	ErrCategoryConflict = errors.New("category: name already exists")
	// ErrCategoryInUse indicates products or subcategories still reference the category.
	ErrCategoryInUse = errors.New("category: in use")
	// ErrCategoryUnavailable indicates the backing store could not be reached.
	ErrCategoryUnavailable = errors.New("category: repository unavailable")
)

// CategoryServiceDeps bundles constructor inputs for the category service.
type CategoryServiceDeps struct {
	Categories repositories.CategoryRepository
	Products   repositories.ProductRepository
	UnitOfWork repositories.UnitOfWork
	IDs        IdentifierGenerator
	Clock      func() time.Time
}

type categoryService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	ids        IdentifierGenerator
	clock      func() time.Time
}

// NewCategoryService constructs the category service with the supplied dependencies.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("category service: product repository is required")
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
	return &categoryService{
		categories: deps.Categories,
		products:   deps.Products,
		unitOfWork: unit,
		ids:        ids,
		clock:      func() time.Time { return clock().UTC() },
	}, nil
}

// Tree returns root categories with their subcategories attached.
func (s *categoryService) Tree(ctx context.Context) ([]Category, error) {
	flat, err := s.categories.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return buildCategoryTree(flat), nil
}

func (s *categoryService) Get(ctx context.Context, categoryID string) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	flat, err := s.categories.List(ctx)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	category.Children = childrenOf(flat, category.ID)
	return category, nil
}

func (s *categoryService) Create(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	v := newViolations(ErrCategoryInvalidInput)
	v.check(cmd)
	if err := v.err(); err != nil {
		return Category{}, err
	}

	now := s.clock()
	category := Category{
		ID:        s.ids.NewID(categoryIDPrefix),
		IsActive:  true,
		CreatedAt: now,
		Children:  []Category{},
	}
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkParent(txCtx, category.ID, cmd.ParentID, false); err != nil {
			return err
		}
		applyCategoryCommand(&category, cmd, now)
		if err := s.categories.Insert(txCtx, category); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, categoryID string, cmd UpsertCategoryCommand) (Category, error) {
	v := newViolations(ErrCategoryInvalidInput)
	v.check(cmd)
	if err := v.err(); err != nil {
		return Category{}, err
	}

	var updated Category
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		category, err := s.categories.FindByID(txCtx, strings.TrimSpace(categoryID))
		if err != nil {
			return s.mapRepositoryError(err)
		}
		children, err := s.categories.CountChildren(txCtx, category.ID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.checkParent(txCtx, category.ID, cmd.ParentID, children > 0); err != nil {
			return err
		}
		applyCategoryCommand(&category, cmd, s.clock())
		if err := s.categories.Update(txCtx, category); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = category
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	return updated, nil
}

// Delete refuses to remove categories that still have subcategories or products.
func (s *categoryService) Delete(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	return s.runInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.categories.FindByID(txCtx, categoryID); err != nil {
			return s.mapRepositoryError(err)
		}
		children, err := s.categories.CountChildren(txCtx, categoryID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if children > 0 {
			return fmt.Errorf("%w: %d subcategories", ErrCategoryInUse, children)
		}
		products, err := s.products.CountByCategory(txCtx, categoryID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if products > 0 {
			return fmt.Errorf("%w: %d products", ErrCategoryInUse, products)
		}
		if err := s.categories.Delete(txCtx, categoryID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
}

// checkParent enforces the two level tree: the parent must exist, must be a
// root, and a category that has children cannot itself become a child.
func (s *categoryService) checkParent(ctx context.Context, categoryID string, parentID *string, hasChildren bool) error {
	id := strings.TrimSpace(derefString(parentID))
	if id == "" {
		return nil
	}
	v := newViolations(ErrCategoryInvalidInput)
	if id == categoryID {
		v.add("parentId", "parent", "must not reference the category itself")
		return v.err()
	}
	parent, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrCategoryParentNotFound, id)
		}
		return s.mapRepositoryError(err)
	}
	if !parent.IsRoot() {
		v.add("parentId", "depth", "must reference a root category")
	}
	if hasChildren {
		v.add("parentId", "depth", "a category with subcategories cannot become a subcategory")
	}
	return v.err()
}

func applyCategoryCommand(category *Category, cmd UpsertCategoryCommand, now time.Time) {
	category.Name = strings.TrimSpace(cmd.Name)
	category.Slug = slug.Make(category.Name)
	category.Description = trimmedOptional(cmd.Description)
	category.ParentID = trimmedOptional(cmd.ParentID)
	category.Image = trimmedOptional(cmd.Image)
	if cmd.IsActive != nil {
		category.IsActive = *cmd.IsActive
	}
	if cmd.SortOrder != nil {
		category.SortOrder = *cmd.SortOrder
	}
	category.UpdatedAt = now
}

func buildCategoryTree(flat []Category) []Category {
	roots := make([]Category, 0)
	for _, category := range flat {
		if category.IsRoot() {
			category.Children = childrenOf(flat, category.ID)
			roots = append(roots, category)
		}
	}
	sortCategories(roots)
	return roots
}

func childrenOf(flat []Category, parentID string) []Category {
	children := make([]Category, 0)
	for _, category := range flat {
		if category.ParentID != nil && *category.ParentID == parentID {
			category.Children = []Category{}
			children = append(children, category)
		}
	}
	sortCategories(children)
	return children
}

func sortCategories(categories []Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})
}

func (s *categoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCategoryNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCategoryConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCategoryUnavailable, err)
		}
	}
	return err
}

func (s *categoryService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}
