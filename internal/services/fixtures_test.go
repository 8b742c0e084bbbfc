package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories/memory"
)

var fixtureNow = time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	store *memory.Store
	ids   IdentifierGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		store: memory.New(),
		ids:   NewIdentifierGenerator(fixedClock, nil),
	}
}

func fixedClock() time.Time { return fixtureNow }

// sequenceReader yields 0, 1, 2, ... wrapping at 256.
type sequenceReader struct{ next byte }

func (r *sequenceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

// scriptedIDs replays queued SKUs and order numbers before falling back to a real generator.
type scriptedIDs struct {
	IdentifierGenerator
	skus    []string
	numbers []string
}

func (s *scriptedIDs) ProductSKU(name string) string {
	if len(s.skus) == 0 {
		return s.IdentifierGenerator.ProductSKU(name)
	}
	next := s.skus[0]
	s.skus = s.skus[1:]
	return next
}

func (s *scriptedIDs) OrderNumber() string {
	if len(s.numbers) == 0 {
		return s.IdentifierGenerator.OrderNumber()
	}
	next := s.numbers[0]
	s.numbers = s.numbers[1:]
	return next
}

func (e *testEnv) seedCategory(t *testing.T, id, name string, parentID *string) Category {
	t.Helper()
	category := Category{ID: id, Name: name, Slug: Slugify(name), ParentID: parentID, IsActive: true, CreatedAt: fixtureNow, UpdatedAt: fixtureNow}
	if err := e.store.Categories().Insert(context.Background(), category); err != nil {
		t.Fatalf("seed category %s: %v", id, err)
	}
	return category
}

func (e *testEnv) seedBrand(t *testing.T, id, name string) Brand {
	t.Helper()
	brand := Brand{ID: id, Name: name, Slug: Slugify(name), IsActive: true, CreatedAt: fixtureNow, UpdatedAt: fixtureNow}
	if err := e.store.Brands().Insert(context.Background(), brand); err != nil {
		t.Fatalf("seed brand %s: %v", id, err)
	}
	return brand
}

// seedProduct stores a product under categoryID with one variant per (size, color) pair.
func (e *testEnv) seedProduct(t *testing.T, id, name, categoryID string, price int64, pairs ...[2]string) (Product, []ProductVariant) {
	t.Helper()
	ctx := context.Background()
	product := Product{
		ID:          id,
		Name:        name,
		Slug:        Slugify(name),
		SKU:         "SKU-" + id,
		Description: "Seeded product description",
		Price:       price,
		Images:      []string{"https://cdn.example.com/" + id + ".jpg"},
		CategoryID:  categoryID,
		Available:   true,
		CreatedAt:   fixtureNow,
		UpdatedAt:   fixtureNow,
	}
	if err := e.store.Products().Insert(ctx, product); err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
	inputs := make([]VariantInput, 0, len(pairs))
	for _, pair := range pairs {
		qty := 4
		inputs = append(inputs, VariantInput{Size: pair[0], Color: pair[1], Quantity: &qty})
	}
	variants, err := BuildVariants(product, inputs, e.ids, fixtureNow)
	if err != nil {
		t.Fatalf("build variants: %v", err)
	}
	for _, variant := range variants {
		if err := e.store.Variants().Insert(ctx, variant); err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}
	return product, variants
}

func (e *testEnv) seedDirectory() {
	e.store.PutClient(domain.Client{ID: "cli_ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	e.store.PutClient(domain.Client{ID: "cli_grace", FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"})
	e.store.PutAddress(domain.Address{ID: "adr_ship", ClientID: "cli_ada", Recipient: "Ada Lovelace", Line1: "1 Analytical Way", City: "London", PostalCode: "N1", Country: "GB"})
	e.store.PutAddress(domain.Address{ID: "adr_bill", ClientID: "cli_ada", Recipient: "Ada Lovelace", Line1: "2 Engine Row", City: "London", PostalCode: "N2", Country: "GB"})
}
