package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories"
)

func seedCatalog(t *testing.T, s *Store) domain.Product {
	t.Helper()
	ctx := context.Background()
	if err := s.Categories().Insert(ctx, domain.Category{ID: "cat_1", Name: "Clothing", IsActive: true}); err != nil {
		t.Fatalf("insert category: %v", err)
	}
	product := domain.Product{ID: "prd_1", Name: "Classic Tee", Slug: "classic-tee", SKU: "SKU-1", CategoryID: "cat_1", Price: 1999}
	if err := s.Products().Insert(ctx, product); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return product
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := New()
	seedCatalog(t, s)
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_1", ProductID: "prd_1", Size: "M"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Variants().FindByID(context.Background(), "var_1"); err == nil {
		t.Fatal("expected variant insert to be rolled back")
	}
}

func TestRunInTxNestedCallsJoinOuter(t *testing.T) {
	s := New()
	seedCatalog(t, s)

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		return s.RunInTx(ctx, func(inner context.Context) error {
			return s.Variants().Insert(inner, domain.ProductVariant{ID: "var_1", ProductID: "prd_1", Size: "M"})
		})
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if _, err := s.Variants().FindByID(context.Background(), "var_1"); err != nil {
		t.Fatalf("expected committed variant, got %v", err)
	}
}

func TestFailNthInjectsOneFault(t *testing.T) {
	s := New()
	seedCatalog(t, s)
	boom := errors.New("disk full")
	s.FailNth("variants.insert", 2, boom)
	ctx := context.Background()

	if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_1", ProductID: "prd_1", Size: "S"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_2", ProductID: "prd_1", Size: "M"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_3", ProductID: "prd_1", Size: "L"}); err != nil {
		t.Fatalf("third insert: %v", err)
	}
	if got := s.Calls("variants.insert"); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestUniqueConstraintsReportField(t *testing.T) {
	s := New()
	seedCatalog(t, s)
	ctx := context.Background()

	err := s.Products().Insert(ctx, domain.Product{ID: "prd_2", Name: "Other", Slug: "other", SKU: "SKU-1", CategoryID: "cat_1"})
	if got := repositories.ConflictField(err); got != "sku" {
		t.Fatalf("expected sku conflict, got %q (%v)", got, err)
	}
	err = s.Products().Insert(ctx, domain.Product{ID: "prd_2", Name: "Classic Tee", Slug: "classic-tee", SKU: "SKU-2", CategoryID: "cat_1"})
	if got := repositories.ConflictField(err); got != "slug" {
		t.Fatalf("expected slug conflict, got %q (%v)", got, err)
	}

	if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_1", ProductID: "prd_1", Size: "M", Color: "Red"}); err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	err = s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_2", ProductID: "prd_1", Size: "M", Color: "Red"})
	if got := repositories.ConflictField(err); got != "variant" {
		t.Fatalf("expected variant conflict, got %q (%v)", got, err)
	}
}

func TestProductDeleteCascadesAndDetachesOrderItems(t *testing.T) {
	s := New()
	seedCatalog(t, s)
	ctx := context.Background()
	s.PutClient(domain.Client{ID: "cli_1", FirstName: "Ada", LastName: "Lovelace"})

	if err := s.Variants().Insert(ctx, domain.ProductVariant{ID: "var_1", ProductID: "prd_1", Size: "M"}); err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	productID, variantID := "prd_1", "var_1"
	order := domain.Order{
		ID: "ord_1", OrderNumber: "ORD-1", ClientID: "cli_1",
		Items: []domain.OrderItem{{ID: "itm_1", OrderID: "ord_1", ProductID: &productID, VariantID: &variantID, Quantity: 1, ProductName: "Classic Tee"}},
	}
	if err := s.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	if err := s.Products().Delete(ctx, "prd_1"); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := s.Variants().FindByID(ctx, "var_1"); err == nil {
		t.Fatal("expected variants to cascade")
	}
	stored, err := s.Orders().FindByID(ctx, "ord_1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	item := stored.Items[0]
	if item.ProductID != nil || item.VariantID != nil {
		t.Fatalf("expected detached references, got product=%v variant=%v", item.ProductID, item.VariantID)
	}
	if item.ProductName != "Classic Tee" {
		t.Fatalf("expected snapshot to survive, got %q", item.ProductName)
	}
}

func TestOrderListFiltersSearchAndPaginates(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutClient(domain.Client{ID: "cli_1", FirstName: "Ada", LastName: "Lovelace"})
	s.PutClient(domain.Client{ID: "cli_2", FirstName: "Grace", LastName: "Hopper"})
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ord_a", "ord_b", "ord_c"} {
		client := "cli_1"
		if i == 2 {
			client = "cli_2"
		}
		order := domain.Order{
			ID: id, OrderNumber: "ORD-" + id, ClientID: client,
			Status: domain.OrderStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Orders().Insert(ctx, order); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	search := "hopp"
	page, err := s.Orders().List(ctx, repositories.OrderListFilter{Search: &search})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ord_c" {
		t.Fatalf("expected client name match on ord_c, got %+v", page.Items)
	}

	first, err := s.Orders().List(ctx, repositories.OrderListFilter{Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != "ord_c" || first.NextPageToken == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second, err := s.Orders().List(ctx, repositories.OrderListFilter{Pagination: domain.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "ord_a" || second.NextPageToken != "" {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestBrandDeleteRestrictedByProducts(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Categories().Insert(ctx, domain.Category{ID: "cat_1", Name: "Shoes"}); err != nil {
		t.Fatalf("insert category: %v", err)
	}
	if err := s.Brands().Insert(ctx, domain.Brand{ID: "brd_1", Name: "Acme"}); err != nil {
		t.Fatalf("insert brand: %v", err)
	}
	brandID := "brd_1"
	if err := s.Products().Insert(ctx, domain.Product{ID: "prd_1", Slug: "runner", SKU: "SKU-R", CategoryID: "cat_1", BrandID: &brandID}); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	err := s.Brands().Delete(ctx, "brd_1")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.Brands().Insert(ctx, domain.Brand{ID: "brd_2", Name: "Acme"}); repositories.ConflictField(err) != "name" {
		t.Fatalf("expected duplicate name conflict, got %v", err)
	}
}
