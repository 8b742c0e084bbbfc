package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boutique-admin/api/internal/repositories"
)

var (
	// ErrCategoryUnresolved indicates the category a product should be filed under does not exist.
	ErrCategoryUnresolved = errors.New("category resolver: category not found")
	// ErrCategoryParentMismatch indicates a subcategory that is not a child of the supplied category.
	ErrCategoryParentMismatch = errors.New("category resolver: subcategory does not belong to category")
)

// CategoryResolver picks the category a product write is filed under. The
// subcategory, when supplied, overrides the primary category. With Strict set
// the subcategory must also be a direct child of the primary category.
type CategoryResolver struct {
	Categories repositories.CategoryRepository
	Strict     bool
}

// Resolve returns the final category after checking it exists.
func (r CategoryResolver) Resolve(ctx context.Context, categoryID string, subcategoryID *string) (Category, error) {
	if r.Categories == nil {
		return Category{}, errors.New("category resolver: repository is not configured")
	}
	categoryID = strings.TrimSpace(categoryID)
	sub := ""
	if subcategoryID != nil {
		sub = strings.TrimSpace(*subcategoryID)
	}

	finalID := categoryID
	if sub != "" {
		finalID = sub
	}
	if finalID == "" {
		return Category{}, fmt.Errorf("%w: category id is empty", ErrCategoryUnresolved)
	}

	category, err := r.Categories.FindByID(ctx, finalID)
	if err != nil {
		if isRepoNotFound(err) {
			return Category{}, fmt.Errorf("%w: %s", ErrCategoryUnresolved, finalID)
		}
		return Category{}, err
	}

	if r.Strict && sub != "" {
		if category.ParentID == nil || *category.ParentID != categoryID {
			return Category{}, fmt.Errorf("%w: %s is not a child of %s", ErrCategoryParentMismatch, sub, categoryID)
		}
	}
	return category, nil
}

func isRepoNotFound(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
