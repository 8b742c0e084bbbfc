package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCategoryService(t *testing.T, env *testEnv) CategoryService {
	t.Helper()
	svc, err := NewCategoryService(CategoryServiceDeps{
		Categories: env.store.Categories(),
		Products:   env.store.Products(),
		UnitOfWork: env.store,
		IDs:        env.ids,
		Clock:      fixedClock,
	})
	require.NoError(t, err)
	return svc
}

func newBrandService(t *testing.T, env *testEnv) BrandService {
	t.Helper()
	svc, err := NewBrandService(BrandServiceDeps{
		Brands:     env.store.Brands(),
		Products:   env.store.Products(),
		UnitOfWork: env.store,
		IDs:        env.ids,
		Clock:      fixedClock,
	})
	require.NoError(t, err)
	return svc
}

func strPtr(v string) *string { return &v }

func TestCategoryServiceBuildsSortedTree(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(t, env)
	ctx := context.Background()

	women, err := svc.Create(ctx, UpsertCategoryCommand{Name: "  Women ", SortOrder: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Women", women.Name)
	assert.Equal(t, "women", women.Slug)
	assert.True(t, women.IsActive)
	assert.Equal(t, fixtureNow, women.CreatedAt)

	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Accessories", SortOrder: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Tops", ParentID: &women.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Dresses", ParentID: &women.ID})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Accessories", tree[0].Name)
	assert.Empty(t, tree[0].Children)
	require.Len(t, tree[1].Children, 2)
	assert.Equal(t, "Dresses", tree[1].Children[0].Name)
	assert.Equal(t, "Tops", tree[1].Children[1].Name)

	got, err := svc.Get(ctx, women.ID)
	require.NoError(t, err)
	assert.Len(t, got.Children, 2)
}

func TestCategoryServiceEnforcesTwoLevels(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(t, env)
	ctx := context.Background()

	root, err := svc.Create(ctx, UpsertCategoryCommand{Name: "Men"})
	require.NoError(t, err)
	child, err := svc.Create(ctx, UpsertCategoryCommand{Name: "Shirts", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Oxford", ParentID: &child.ID})
	require.ErrorIs(t, err, ErrCategoryInvalidInput)

	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Ghost", ParentID: strPtr("cat_missing")})
	require.ErrorIs(t, err, ErrCategoryParentNotFound)

	other, err := svc.Create(ctx, UpsertCategoryCommand{Name: "Kids"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, root.ID, UpsertCategoryCommand{Name: "Men", ParentID: &other.ID})
	require.ErrorIs(t, err, ErrCategoryInvalidInput, "a parent with children cannot move under another root")

	_, err = svc.Update(ctx, other.ID, UpsertCategoryCommand{Name: "Kids", ParentID: &other.ID})
	require.ErrorIs(t, err, ErrCategoryInvalidInput)
}

func TestCategoryServiceValidationAndConflicts(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(t, env)
	ctx := context.Background()

	_, err := svc.Create(ctx, UpsertCategoryCommand{Name: "X", Image: strPtr("not a url")})
	require.ErrorIs(t, err, ErrCategoryInvalidInput)
	fields := FieldViolations(err)
	require.Len(t, fields, 2)

	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "Shoes"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertCategoryCommand{Name: "shoes"})
	require.ErrorIs(t, err, ErrCategoryConflict)

	_, err = svc.Update(ctx, "cat_missing", UpsertCategoryCommand{Name: "Boots"})
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCategoryServiceDeleteRefusesInUse(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(t, env)
	ctx := context.Background()

	root := env.seedCategory(t, "cat_root", "Women", nil)
	leaf := env.seedCategory(t, "cat_leaf", "Tops", &root.ID)
	env.seedProduct(t, "prd_1", "Linen Top", leaf.ID, 4500)

	require.ErrorIs(t, svc.Delete(ctx, root.ID), ErrCategoryInUse)
	require.ErrorIs(t, svc.Delete(ctx, leaf.ID), ErrCategoryInUse)
	require.ErrorIs(t, svc.Delete(ctx, "cat_missing"), ErrCategoryNotFound)

	empty := env.seedCategory(t, "cat_empty", "Sale", nil)
	require.NoError(t, svc.Delete(ctx, empty.ID))
	_, err := svc.Get(ctx, empty.ID)
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestBrandServiceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newBrandService(t, env)
	ctx := context.Background()

	brand, err := svc.Create(ctx, UpsertBrandCommand{Name: "Atelier Nord", Website: strPtr("https://atelier-nord.example.com")})
	require.NoError(t, err)
	assert.Equal(t, "atelier-nord", brand.Slug)
	assert.True(t, brand.IsActive)

	_, err = svc.Create(ctx, UpsertBrandCommand{Name: "atelier nord"})
	require.ErrorIs(t, err, ErrBrandConflict)

	_, err = svc.Create(ctx, UpsertBrandCommand{Name: "Linha", Logo: strPtr("ftp//broken")})
	require.ErrorIs(t, err, ErrBrandInvalidInput)

	inactive := false
	updated, err := svc.Update(ctx, brand.ID, UpsertBrandCommand{Name: "Atelier Nord Studio", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "atelier-nord-studio", updated.Slug)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.Website, "fields omitted on update are cleared")

	got, err := svc.Get(ctx, brand.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Name, got.Name)

	_, err = svc.Update(ctx, "brd_missing", UpsertBrandCommand{Name: "Nobody"})
	require.ErrorIs(t, err, ErrBrandNotFound)
}

func TestBrandServiceListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := newBrandService(t, env)
	ctx := context.Background()

	used := env.seedBrand(t, "brd_used", "Linha")
	env.seedBrand(t, "brd_free", "Maison Clair")
	category := env.seedCategory(t, "cat_tops", "Tops", nil)
	product, _ := env.seedProduct(t, "prd_1", "Linen Shirt", category.ID, 3900)
	product.BrandID = &used.ID
	require.NoError(t, env.store.Products().Update(ctx, product))

	page, err := svc.List(ctx, BrandListFilter{Search: strPtr(" maison ")})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "brd_free", page.Items[0].ID)

	require.ErrorIs(t, svc.Delete(ctx, used.ID), ErrBrandInUse)
	require.NoError(t, svc.Delete(ctx, "brd_free"))
	require.ErrorIs(t, svc.Delete(ctx, "brd_free"), ErrBrandNotFound)
}
