package repositories

import (
	"context"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Brands() BrandRepository
	Products() ProductRepository
	Variants() VariantRepository
	Orders() OrderRepository
	Clients() ClientRepository
	Addresses() AddressRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the context handed to fn participate in the transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CategoryRepository persists the category tree.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	// List returns every category flat, ordered by sort order then name.
	List(ctx context.Context) ([]domain.Category, error)
	CountChildren(ctx context.Context, categoryID string) (int, error)
}

// BrandRepository persists brands. Insert and Update return a conflict error when the name is taken.
type BrandRepository interface {
	Insert(ctx context.Context, brand domain.Brand) error
	Update(ctx context.Context, brand domain.Brand) error
	Delete(ctx context.Context, brandID string) error
	FindByID(ctx context.Context, brandID string) (domain.Brand, error)
	List(ctx context.Context, filter BrandListFilter) (domain.CursorPage[domain.Brand], error)
}

// BrandListFilter narrows brand listings.
type BrandListFilter struct {
	IsActive   *bool
	Search     *string
	Pagination domain.Pagination
}

// ProductRepository persists product rows. Variants are handled by VariantRepository.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	CountByBrand(ctx context.Context, brandID string) (int, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
}

// ProductListFilter captures list and search predicates for products.
type ProductListFilter struct {
	CategoryID *string
	BrandID    *string
	Available  *bool
	Search     *string
	PriceRange domain.RangeQuery[int64]
	Sort       domain.ProductSort
	Order      domain.SortOrder
	Pagination domain.Pagination
}

// VariantRepository persists the variant matrix of products.
type VariantRepository interface {
	Insert(ctx context.Context, variant domain.ProductVariant) error
	Update(ctx context.Context, variant domain.ProductVariant) error
	Delete(ctx context.Context, variantID string) error
	FindByID(ctx context.Context, variantID string) (domain.ProductVariant, error)
	// ListByProduct returns variants ordered by size then color.
	ListByProduct(ctx context.Context, productID string, activeOnly bool) ([]domain.ProductVariant, error)
}

// OrderRepository persists orders together with their items.
type OrderRepository interface {
	// Insert writes the order header and all of its items.
	Insert(ctx context.Context, order domain.Order) error
	// Update rewrites the mutable header fields; items are never touched.
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order listings. Results are newest first.
type OrderListFilter struct {
	ClientID      *string
	Status        []domain.OrderStatus
	PaymentStatus []domain.PaymentStatus
	Search        *string
	DateRange     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
}

// ClientRepository reads clients owned by the customer directory.
type ClientRepository interface {
	FindByID(ctx context.Context, clientID string) (domain.Client, error)
}

// AddressRepository reads addresses owned by the customer directory.
type AddressRepository interface {
	FindByID(ctx context.Context, addressID string) (domain.Address, error)
}

// HealthRepository reports the state of backing dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
