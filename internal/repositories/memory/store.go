// Package memory implements the repository registry in process. Transactions
// snapshot the whole dataset and restore it when the unit of work fails, which
// gives tests the same all-or-nothing behaviour as the Postgres registry.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/pagination"
	"github.com/boutique-admin/api/internal/repositories"
)

type txKey struct{}

type dataset struct {
	categories map[string]domain.Category
	brands     map[string]domain.Brand
	products   map[string]domain.Product
	variants   map[string]domain.ProductVariant
	orders     map[string]domain.Order
	clients    map[string]domain.Client
	addresses  map[string]domain.Address
}

func newDataset() *dataset {
	return &dataset{
		categories: map[string]domain.Category{},
		brands:     map[string]domain.Brand{},
		products:   map[string]domain.Product{},
		variants:   map[string]domain.ProductVariant{},
		orders:     map[string]domain.Order{},
		clients:    map[string]domain.Client{},
		addresses:  map[string]domain.Address{},
	}
}

// clone copies the maps; values are treated as immutable once stored, so a
// shallow copy of every map is a full snapshot.
func (d *dataset) clone() *dataset {
	return &dataset{
		categories: cloneMap(d.categories),
		brands:     cloneMap(d.brands),
		products:   cloneMap(d.products),
		variants:   cloneMap(d.variants),
		orders:     cloneMap(d.orders),
		clients:    cloneMap(d.clients),
		addresses:  cloneMap(d.addresses),
	}
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type fault struct {
	countdown int
	err       error
}

// Store is the in-memory repository registry.
type Store struct {
	// writeMu serialises transactions and standalone writes.
	writeMu sync.Mutex

	mu     sync.RWMutex
	data   *dataset
	faults map[string]*fault
	calls  map[string]int
}

var _ repositories.Registry = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:   newDataset(),
		faults: map[string]*fault{},
		calls:  map[string]int{},
	}
}

// RunInTx executes fn atomically. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	active, _ := ctx.Value(txKey{}).(bool)
	return active
}

// write runs a mutation, taking the write lock unless the caller is already
// inside a transaction that holds it.
func (s *Store) write(ctx context.Context, op string, fn func(d *dataset) error) error {
	if !inTx(ctx) {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	if err := s.checkFault(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read(op string, fn func(d *dataset) error) error {
	if err := s.checkFault(op); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// FailNth makes the nth upcoming call of op (for example "variants.insert")
// return err. The fault fires once.
func (s *Store) FailNth(op string, n int, err error) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{countdown: n, err: err}
}

// Calls reports how many times op was invoked, including failed calls.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) checkFault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	f.countdown--
	if f.countdown > 0 {
		return nil
	}
	delete(s.faults, op)
	return f.err
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Categories() repositories.CategoryRepository { return categoryRepository{s} }
func (s *Store) Brands() repositories.BrandRepository         { return brandRepository{s} }
func (s *Store) Products() repositories.ProductRepository     { return productRepository{s} }
func (s *Store) Variants() repositories.VariantRepository     { return variantRepository{s} }
func (s *Store) Orders() repositories.OrderRepository         { return orderRepository{s} }
func (s *Store) Clients() repositories.ClientRepository       { return clientRepository{s} }
func (s *Store) Addresses() repositories.AddressRepository    { return addressRepository{s} }

// Health reports a single always-ok "memory" dependency.
func (s *Store) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:     "memory",
		Critical: true,
		Check:    func(context.Context) error { return nil },
	}})
	return repo
}

// PutClient stores a customer directory entry.
func (s *Store) PutClient(client domain.Client) {
	_ = s.write(context.Background(), "clients.put", func(d *dataset) error {
		d.clients[client.ID] = client
		return nil
	})
}

// PutAddress stores a customer directory address.
func (s *Store) PutAddress(address domain.Address) {
	_ = s.write(context.Background(), "addresses.put", func(d *dataset) error {
		d.addresses[address.ID] = address
		return nil
	})
}

func paginate[T any](op string, items []T, p domain.Pagination) (domain.CursorPage[T], error) {
	offset, limit, err := pagination.Window(p.PageSize, p.PageToken)
	if err != nil {
		return domain.CursorPage[T]{}, fmt.Errorf("%s: %w", op, err)
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := min(offset+limit+1, len(items))
	window := items[offset:end]
	page := domain.CursorPage[T]{
		NextPageToken: pagination.NextToken(offset, limit, len(window)),
	}
	if len(window) > limit {
		window = window[:limit]
	}
	page.Items = append(make([]T, 0, len(window)), window...)
	return page, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func notFound(op, kind, id string) error {
	return repositories.NewNotFoundError(op, fmt.Sprintf("%s %s not found", kind, id))
}
