package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/boutique-admin/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Category           = domain.Category
	Brand              = domain.Brand
	Product            = domain.Product
	ProductVariant     = domain.ProductVariant
	VariantStats       = domain.VariantStats
	Dimensions         = domain.Dimensions
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderTotals        = domain.OrderTotals
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	PaymentMethod      = domain.PaymentMethod
	VariantInfo        = domain.VariantInfo
	ProductRef         = domain.ProductRef
	VariantRef         = domain.VariantRef
	Client             = domain.Client
	Address            = domain.Address
	SystemHealthReport = domain.SystemHealthReport
)

// CategoryService manages the two level category tree.
type CategoryService interface {
	Tree(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, categoryID string) (Category, error)
	Create(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	Update(ctx context.Context, categoryID string, cmd UpsertCategoryCommand) (Category, error)
	Delete(ctx context.Context, categoryID string) error
}

// BrandService manages brands referenced by products.
type BrandService interface {
	List(ctx context.Context, filter BrandListFilter) (domain.CursorPage[Brand], error)
	Get(ctx context.Context, brandID string) (Brand, error)
	Create(ctx context.Context, cmd UpsertBrandCommand) (Brand, error)
	Update(ctx context.Context, brandID string, cmd UpsertBrandCommand) (Brand, error)
	Delete(ctx context.Context, brandID string) error
}

// ProductService owns products and their variant matrix.
type ProductService interface {
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	Search(ctx context.Context, filter ProductSearchFilter) (domain.CursorPage[Product], error)
	Get(ctx context.Context, productID string) (ProductDetail, error)
	Variants(ctx context.Context, productID string) ([]ProductVariant, error)
	Create(ctx context.Context, cmd CreateProductCommand) (ProductDetail, error)
	Update(ctx context.Context, cmd UpdateProductCommand) (ProductDetail, error)
	Delete(ctx context.Context, productID string) error
}

// OrderService composes and maintains orders.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Delete(ctx context.Context, orderID string) error
}

// SystemService exposes operational metadata for health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher delivers order lifecycle events after commit.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEventPublisherFunc adapts ordinary functions to OrderEventPublisher.
type OrderEventPublisherFunc func(context.Context, OrderEvent) error

// PublishOrderEvent calls f(ctx, event).
func (f OrderEventPublisherFunc) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	return f(ctx, event)
}

// DomainError represents a structured error with stable codes for transport across layers.
type DomainError interface {
	error
	Code() string
	SafeMessage() string
}

// Command and DTO definitions ------------------------------------------------

type UpsertCategoryCommand struct {
	Name        string  `validate:"required,min=2,max=100"`
	Description *string `validate:"omitempty,max=500"`
	ParentID    *string
	Image       *string `validate:"omitempty,url"`
	IsActive    *bool
	SortOrder   *int `validate:"omitempty,min=0,max=9999"`
}

type BrandListFilter struct {
	IsActive   *bool
	Search     *string
	Pagination Pagination
}

type UpsertBrandCommand struct {
	Name        string  `validate:"required,min=2,max=100"`
	Description *string `validate:"omitempty,max=500"`
	Logo        *string `validate:"omitempty,url"`
	Website     *string `validate:"omitempty,url"`
	IsActive    *bool
}

type ProductListFilter struct {
	CategoryID *string
	Available  *bool
	Search     *string
	Pagination Pagination
}

type ProductSearchFilter struct {
	Query      string
	CategoryID *string
	Available  *bool
	BrandID    *string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     domain.ProductSort
	SortOrder  SortOrder
	Pagination Pagination
}

// VariantInput is one requested cell of a product's size/color matrix.
type VariantInput struct {
	Size     string `validate:"max=20"`
	Color    string `validate:"max=30"`
	Quantity *int   `validate:"omitempty,min=0"`
}

type CreateProductCommand struct {
	Name             string  `validate:"required,min=2,max=200"`
	Description      string  `validate:"required,min=10,max=1000"`
	ShortDescription *string `validate:"omitempty,max=200"`
	Price            decimal.Decimal
	ComparePrice     *decimal.Decimal
	CategoryID       string  `validate:"required"`
	SubcategoryID    *string `validate:"omitempty,min=1"`
	BrandID          *string `validate:"omitempty,min=1"`
	Stock            *int    `validate:"omitempty,min=0"`
	Available        *bool
	Images           []string       `validate:"required,min=1,dive,required,url"`
	Variants         []VariantInput `validate:"dive"`
	Featured         bool
	IsNewIn          bool
	Tags             []string `validate:"dive,max=50"`
	MetaTitle        *string  `validate:"omitempty,max=60"`
	MetaDescription  *string  `validate:"omitempty,max=160"`
	Weight           *float64 `validate:"omitempty,min=0"`
	Dimensions       *Dimensions
}

// UpdateProductCommand is a partial update; nil fields keep their stored value.
// A nil or empty Variants list leaves the variant matrix untouched.
type UpdateProductCommand struct {
	ProductID        string  `validate:"required"`
	Name             *string `validate:"omitempty,min=2,max=200"`
	Description      *string `validate:"omitempty,min=10,max=1000"`
	ShortDescription *string `validate:"omitempty,max=200"`
	Price            *decimal.Decimal
	ComparePrice     *decimal.Decimal
	CategoryID       *string `validate:"omitempty,min=1"`
	SubcategoryID    *string `validate:"omitempty,min=1"`
	BrandID          *string
	Stock            *int `validate:"omitempty,min=0"`
	Available        *bool
	Images           []string       `validate:"omitempty,dive,required,url"`
	Variants         []VariantInput `validate:"dive"`
	Featured         *bool
	IsNewIn          *bool
	Tags             []string `validate:"omitempty,dive,max=50"`
	MetaTitle        *string  `validate:"omitempty,max=60"`
	MetaDescription  *string  `validate:"omitempty,max=160"`
	Weight           *float64 `validate:"omitempty,min=0"`
	Dimensions       *Dimensions
}

// ProductDetail is the read view of a product with resolved associations.
type ProductDetail struct {
	Product         Product
	Category        *Category
	Brand           *Brand
	Stats           VariantStats
	DescriptionHTML string
}

type OrderItemInput struct {
	ProductID string  `validate:"required"`
	VariantID *string `validate:"omitempty,min=1"`
	Quantity  int     `validate:"min=1"`
	UnitPrice decimal.Decimal
}

type CreateOrderCommand struct {
	ClientID          string           `validate:"required"`
	Items             []OrderItemInput `validate:"required,min=1,dive"`
	ShippingAddressID string           `validate:"required"`
	BillingAddressID  string           `validate:"required"`
	ShippingCost      *decimal.Decimal
	TaxAmount         *decimal.Decimal
	DiscountAmount    *decimal.Decimal
	PaymentMethod     *PaymentMethod `validate:"omitempty,oneof=CARD PAYPAL APPLE_PAY GOOGLE_PAY"`
	Notes             *string        `validate:"omitempty,max=500"`
}

// UpdateOrderCommand is a partial update of the mutable order fields.
type UpdateOrderCommand struct {
	OrderID        string         `validate:"required"`
	Status         *OrderStatus   `validate:"omitempty,oneof=PENDING CONFIRMED PROCESSING SHIPPED DELIVERED CANCELLED REFUNDED"`
	PaymentStatus  *PaymentStatus `validate:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED"`
	PaymentMethod  *PaymentMethod `validate:"omitempty,oneof=CARD PAYPAL APPLE_PAY GOOGLE_PAY"`
	ShippingCost   *decimal.Decimal
	TaxAmount      *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Notes          *string `validate:"omitempty,max=500"`
}

type UpdateOrderStatusCommand struct {
	OrderID       string         `validate:"required"`
	Status        OrderStatus    `validate:"required,oneof=PENDING CONFIRMED PROCESSING SHIPPED DELIVERED CANCELLED REFUNDED"`
	PaymentStatus *PaymentStatus `validate:"omitempty,oneof=PENDING COMPLETED FAILED REFUNDED"`
}

type OrderListFilter struct {
	ClientID      *string
	Status        []OrderStatus
	PaymentStatus []PaymentStatus
	Search        *string
	DateRange     domain.RangeQuery[time.Time]
	Pagination    Pagination
}

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber,omitempty"`
	ClientID      string    `json:"clientId,omitempty"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	Total         string    `json:"total,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

const (
	OrderEventCreated = "order.created"
	OrderEventUpdated = "order.updated"
	OrderEventDeleted = "order.deleted"
)
